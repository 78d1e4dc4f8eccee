package container

// Kind discriminates tag payloads.
type Kind string

const (
	KindMarkup  Kind = "markup"
	KindScript  Kind = "script"
	KindPixel   Kind = "pixel"
	KindCode    Kind = "code"
	KindUnknown Kind = "unknown"
)

// Payload is the closed set of tag payload variants.
type Payload interface {
	Kind() Kind
	payload()
}

// Markup is injected as HTML; embedded scripts are hoisted to <head>.
type Markup struct {
	HTML string
}

// Script becomes a <script> element in <head>, either remote (Src) or inline (Code).
type Script struct {
	Src        string
	Code       string
	Async      bool
	Attributes map[string]string
}

// Pixel is a hidden image request.
type Pixel struct {
	Src string
}

// Code is arbitrary code run with the event context as its only argument.
// It runs with the host page's privileges; it is not sandboxed.
type Code struct {
	Code string
}

// UnknownPayload keeps a tag whose type could not be recognised, or whose
// payload is missing its required fields, so that it can be logged and
// skipped at execution time.
type UnknownPayload struct {
	Type   string
	Reason string
}

func (Markup) Kind() Kind         { return KindMarkup }
func (Script) Kind() Kind         { return KindScript }
func (Pixel) Kind() Kind          { return KindPixel }
func (Code) Kind() Kind           { return KindCode }
func (UnknownPayload) Kind() Kind { return KindUnknown }

func (Markup) payload()         {}
func (Script) payload()         {}
func (Pixel) payload()          {}
func (Code) payload()           {}
func (UnknownPayload) payload() {}

// ParseKind maps wire type names onto a Kind. Both the legacy names
// (html, image, custom) and the descriptive ones are accepted.
func ParseKind(s string) Kind {
	switch normalize(s) {
	case "html", "markup":
		return KindMarkup
	case "script":
		return KindScript
	case "image", "img", "pixel":
		return KindPixel
	case "custom", "code":
		return KindCode
	}
	return KindUnknown
}
