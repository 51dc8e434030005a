package domain

// Requester is the authenticated caller of an operation, as read from the identity token.
type Requester struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// CanAccess reports whether the requester may act on resources owned by userID.
func (r Requester) CanAccess(userID string) bool {
	return r.IsAdmin || (r.UserID != "" && r.UserID == userID)
}
