package container

import (
	"fmt"
	"strings"
)

// Validate checks a document strictly. Unlike FromDoc, which tolerates
// malformed triggers and unknown tag types, Validate reports every one of
// them. The provider uses it to refuse bad documents before serving them.
//
// Checks:
//   - containerId and tag ids are present and tag ids are unique
//   - tag types are known and carry their payload
//   - triggers are known, carry their type-specific fields, and regex
//     patterns compile
func Validate(doc *Doc) error {
	var errs []string
	if doc.ContainerID == "" {
		errs = append(errs, "containerId is required")
	}
	if doc.Version < 0 {
		errs = append(errs, "version must not be negative")
	}
	ids := make(map[string]int) // id → index

	for i, td := range doc.Tags {
		if td.ID == "" {
			errs = append(errs, fmt.Sprintf("tags[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("tag %s", td.ID)
		if prev, ok := ids[td.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at tags[%d], again at tags[%d])", td.ID, prev, i))
		} else {
			ids[td.ID] = i
		}
		validatePayload(&td, loc, &errs)
		validateTriggers(td.Triggers, loc, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("container validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validatePayload(td *TagDoc, loc string, errs *[]string) {
	switch ParseKind(td.Type) {
	case KindMarkup:
		if td.HTML == "" {
			*errs = append(*errs, fmt.Sprintf("%s: html is required for type %q", loc, td.Type))
		}
	case KindScript:
		if td.Src == "" && td.Code == "" {
			*errs = append(*errs, fmt.Sprintf("%s: one of src/code is required for type %q", loc, td.Type))
		}
	case KindPixel:
		if td.Src == "" {
			*errs = append(*errs, fmt.Sprintf("%s: src is required for type %q", loc, td.Type))
		}
	case KindCode:
		if td.Code == "" {
			*errs = append(*errs, fmt.Sprintf("%s: code is required for type %q", loc, td.Type))
		}
	default:
		*errs = append(*errs, fmt.Sprintf("%s: unknown type %q", loc, td.Type))
	}
}

func validateTriggers(triggers []TriggerDoc, parent string, errs *[]string) {
	for j, td := range triggers {
		switch t := TriggerFromDoc(td).(type) {
		case UnknownTrigger:
			*errs = append(*errs, fmt.Sprintf("%s.triggers[%d]: %s", parent, j, t.Reason))
		case URLMatch:
			if t.Err != nil {
				*errs = append(*errs, fmt.Sprintf("%s.triggers[%d]: invalid regex %q: %v", parent, j, t.URL, t.Err))
			}
		}
	}
}
