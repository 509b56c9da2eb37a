package agent

import (
	"encoding/json"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/totp"
	"google.golang.org/protobuf/types/known/structpb"
)

// Entries travel as structpb.Struct built from their JSON form, so the field
// names on the wire match the payload codec.

func entryToStruct(e models.VaultEntry) (*structpb.Struct, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func structToEntry(s *structpb.Struct) (models.VaultEntry, error) {
	var e models.VaultEntry
	b, err := s.MarshalJSON()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(b, &e)
	return e, err
}

// redact strips everything secret from a search result.
func redact(e models.VaultEntry) models.VaultEntry {
	e.Password = ""
	e.TOTPSecret = ""
	e.Notes = ""
	fields := make([]models.CustomField, 0, len(e.CustomFields))
	for _, f := range e.CustomFields {
		if f.Secret {
			f.Value = ""
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		fields = nil
	}
	e.CustomFields = fields
	return e
}

func codeToStruct(c totp.Code) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":      structpb.NewStringValue(c.Code),
		"remaining": structpb.NewNumberValue(float64(c.Remaining)),
	}}
}

func structToCode(s *structpb.Struct) totp.Code {
	return totp.Code{
		Code:      s.GetFields()["code"].GetStringValue(),
		Remaining: int(s.GetFields()["remaining"].GetNumberValue()),
	}
}
