package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FullName accepts Apple's name either as a plain string or as the
// PersonNameComponents object sent by native clients.
type FullName string

type nameComponents struct {
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName"`
	FamilyName string `json:"familyName"`
}

func (n *FullName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FullName(strings.TrimSpace(s))
		return nil
	case '{':
		var parts nameComponents
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*n = FullName(strings.Join(strings.Fields(
			parts.GivenName+" "+parts.MiddleName+" "+parts.FamilyName), " "))
		return nil
	}
	return fmt.Errorf("fullName: unsupported JSON value %s", data)
}
