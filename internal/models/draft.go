package models

// DraftType enumerates the kinds of legal documents a draft can become.
type DraftType string

const (
	DraftTypeWill        DraftType = "will"
	DraftTypePOAProperty DraftType = "power-of-attorney-property"
	DraftTypePOACare     DraftType = "power-of-attorney-care"
)

// Valid reports whether t is one of the known draft types.
func (t DraftType) Valid() bool {
	switch t {
	case DraftTypeWill, DraftTypePOAProperty, DraftTypePOACare:
		return true
	}
	return false
}

// DraftModel is a user's in-progress legal document. Content holds the wizard
// form state wholesale; every save replaces it entirely.
type DraftModel struct {
	Base
	Type    DraftType              `json:"type"    gorm:"index;not null"`
	Title   string                 `json:"title"`
	Content map[string]interface{} `json:"content" gorm:"serializer:json"`

	Documents []DocumentModel `json:"documents,omitempty" gorm:"foreignKey:DraftID"`
}

func (DraftModel) TableName() string { return "drafts" }
