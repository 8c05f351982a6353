package learning

import "gorm.io/gorm/clause"

// byOrder sorts on the quoted "order" column; the bare word is reserved in SQL.
func byOrder() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "order"}},
		{Column: clause.Column{Name: "id"}},
	}}
}
