// model/book.go
package model

type Book struct {
	ISBN      string   `json:"isbn" bson:"isbn"`
	Title     string   `json:"title" bson:"title"`
	Authors   []string `json:"authors" bson:"authors"`
	Publisher string   `json:"publisher" bson:"publisher"`
	Pages     int      `json:"pages" bson:"pages"`
	Year      int      `json:"year" bson:"year"`
	NCopies   int      `json:"nCopies" bson:"nCopies"`
}
