package model

import "slices"

type Patron struct {
	ID              string   `json:"id" bson:"id"`
	CheckedOutBooks []string `json:"checkedOutBooks" bson:"checkedOutBooks"`
}

// Holds reports whether the patron currently has isbn checked out.
func (p *Patron) Holds(isbn string) bool {
	return p != nil && slices.Contains(p.CheckedOutBooks, isbn)
}
