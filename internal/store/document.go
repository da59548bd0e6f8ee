package store

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
)

// Document is the whole persisted state.
type Document struct {
	Users []domain.User `json:"users"`
	Teams []domain.Team `json:"teams"`
}

// EmptyDocument returns a document with both collections present.
func EmptyDocument() Document {
	return Document{Users: []domain.User{}, Teams: []domain.Team{}}
}

var errNullDocument = errors.New("document is null")

// UnmarshalJSON decodes a document. Absent or null collections become empty
// slices; the legacy "usersDB"/"teamsDB" keys are read when the current keys
// are missing.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errNullDocument
	}
	var raw struct {
		Users       []domain.User `json:"users"`
		Teams       []domain.Team `json:"teams"`
		LegacyUsers []domain.User `json:"usersDB"`
		LegacyTeams []domain.Team `json:"teamsDB"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Users = raw.Users
	if d.Users == nil {
		d.Users = raw.LegacyUsers
	}
	d.Teams = raw.Teams
	if d.Teams == nil {
		d.Teams = raw.LegacyTeams
	}
	d.normalize()
	return nil
}

func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []domain.User{}
	}
	if d.Teams == nil {
		d.Teams = []domain.Team{}
	}
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func encodeDocument(doc Document) ([]byte, error) {
	doc.normalize()
	return json.Marshal(doc)
}
