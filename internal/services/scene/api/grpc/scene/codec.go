package scene

import (
	"encoding/json"
	"fmt"

	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// saveRequest is the JSON shape carried by a SaveScene Struct. Absent
// fields keep their stored value.
type saveRequest struct {
	ProjectID string           `json:"projectId"`
	Title     *string          `json:"title,omitempty"`
	Objects   *[]domain.Object `json:"objects,omitempty"`
	Camera    *domain.Camera   `json:"camera,omitempty"`
}

func (r saveRequest) patch() storage.Patch {
	return storage.Patch{Objects: r.Objects, Camera: r.Camera, Title: r.Title}
}

func toStruct(value any) (*structpb.Struct, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, out); err != nil {
		return nil, fmt.Errorf("convert struct: %w", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, value any) error {
	if in == nil {
		return fmt.Errorf("struct is required")
	}
	payload, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("convert struct: %w", err)
	}
	if err := json.Unmarshal(payload, value); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

func documentFromStruct(in *structpb.Struct) (domain.Document, error) {
	var doc domain.Document
	if err := fromStruct(in, &doc); err != nil {
		return domain.Document{}, err
	}
	if doc.Objects == nil {
		doc.Objects = []domain.Object{}
	}
	return doc, nil
}
