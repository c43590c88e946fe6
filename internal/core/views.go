package core

import (
	"time"

	"specimentrack/pkg/domain"
)

// TimeLayout renders timestamps in views.
const TimeLayout = "2006-01-02 03:04 PM"

// ProjectView is the client representation of a project. Ids are encoded.
type ProjectView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RoleID       string `json:"role_id"`
	SampleTypeID string `json:"sample_type_id,omitempty"`
	CreateTime   string `json:"create_time"`
	UpdateTime   string `json:"update_time"`
}

// SpecimenView is the client representation of a specimen. Ids, including
// an integer parent_id in the sample data, are encoded.
type SpecimenView struct {
	ID          string         `json:"id"`
	Barcode     string         `json:"bar_code"`
	Name        string         `json:"name"`
	ProjectID   string         `json:"project_id"`
	SampleData  map[string]any `json:"sample_data"`
	LineagePath []string       `json:"lineage_path,omitempty"`
	CreateTime  string         `json:"create_time"`
	UpdateTime  string         `json:"update_time"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func (s *Service) projectView(p domain.Project) ProjectView {
	view := ProjectView{
		ID:         s.codec.Encode(p.ID),
		Name:       p.Name,
		RoleID:     s.codec.Encode(p.RoleID),
		CreateTime: formatTime(p.CreatedAt),
		UpdateTime: formatTime(p.UpdatedAt),
	}
	if p.SampleTypeID != nil {
		view.SampleTypeID = s.codec.Encode(*p.SampleTypeID)
	}
	return view
}

// specimenView encodes an integer parent reference. Anything else is left
// as stored: re-encoding a string is how double-encoded references arose.
func (s *Service) specimenView(sp domain.Specimen) SpecimenView {
	data := sp.Attributes.Map()
	if ref, ok := sp.ParentRef(); ok {
		if id, isInt := ref.(int64); isInt {
			data[domain.AttrParentID] = s.codec.Encode(id)
		} else {
			s.logger.Error("parent reference is not an integer", "specimen_id", sp.ID, "parent_id", ref)
		}
	}
	return SpecimenView{
		ID:         s.codec.Encode(sp.ID),
		Barcode:    sp.Barcode,
		Name:       sp.Name,
		ProjectID:  s.codec.Encode(sp.ProjectID),
		SampleData: data,
		CreateTime: formatTime(sp.CreatedAt),
		UpdateTime: formatTime(sp.UpdatedAt),
	}
}
