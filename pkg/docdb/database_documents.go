package docdb

import "time"

// AddDocument stores doc and returns the id the backend assigned to it.
func (db *Database) AddDocument(doc Document) (DocID, error) {
	start := time.Now()

	var id DocID
	err := db.ensureSessionOpen(opAddDocument)
	if err == nil {
		id, err = db.backend.AddDocument(doc)
	}

	db.observe(opAddDocument, start, err)
	return id, err
}

// DeleteDocument removes the document with the given id.
func (db *Database) DeleteDocument(id DocID) error {
	start := time.Now()

	err := db.ensureSessionOpen(opDeleteDocument)
	if err == nil {
		err = db.backend.DeleteDocument(id)
	}

	db.observe(opDeleteDocument, start, err)
	return err
}

// ReplaceDocument stores doc under id, replacing any existing document.
func (db *Database) ReplaceDocument(id DocID, doc Document) error {
	start := time.Now()

	err := db.ensureSessionOpen(opReplaceDocument)
	if err == nil {
		err = db.backend.ReplaceDocument(id, doc)
	}

	db.observe(opReplaceDocument, start, err)
	return err
}
