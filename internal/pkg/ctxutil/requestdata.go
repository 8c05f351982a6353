package ctxutil

import "context"

type requestDataKey struct{}

const RoleAdmin = "admin"

// RequestData is the authenticated caller, attached by the auth middleware.
type RequestData struct {
	UserID string
	Role   string
}

func (rd *RequestData) IsAdmin() bool { return rd != nil && rd.Role == RoleAdmin }

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// UserID is the caller's id, or "" outside an authenticated request.
func UserID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return ""
}
