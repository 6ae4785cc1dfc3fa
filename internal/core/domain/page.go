package domain

// PageType is the content type a page was classified as.
type PageType string

const (
	PageNative  PageType = "native"
	PageScanned PageType = "scanned"
	PageError   PageType = "error"
)

type PageStatus string

const (
	PageStatusSuccess PageStatus = "success"
	PageStatusError   PageStatus = "error"
)

const (
	MethodNative = "native_extraction"
	MethodVision = "vision_ocr"
	MethodNone   = "none"
)

// ImageType labels embedded graphics and graphical marks found on a page.
type ImageType string

const (
	ImageLogo      ImageType = "logo"
	ImageIcon      ImageType = "icon"
	ImageGeneric   ImageType = "image"
	ImageSignature ImageType = "signature"
	ImageStamp     ImageType = "stamp"
	ImageUnknown   ImageType = "unknown"
)

// BBox is a rectangle in page space with the origin at the top-left corner.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b BBox) Width() float64  { return b.X1 - b.X0 }
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// PageClassification is produced once per page before extraction starts.
type PageClassification struct {
	PageNumber     int      `json:"page_number"`
	Classification PageType `json:"classification"`
	Confidence     float64  `json:"confidence"`
	Reason         string   `json:"reason"`
	TextLength     int      `json:"text_length"`
}

type ImageElement struct {
	BBox        BBox      `json:"bbox"`
	Description string    `json:"description"`
	ImageType   ImageType `json:"image_type"`
}

type TableElement struct {
	Rows        [][]string `json:"rows,omitempty"`
	BBox        BBox       `json:"bbox"`
	HTML        string     `json:"html,omitempty"`
	Description string     `json:"description"`
}

// ExtractedPage is the write-once outcome of extracting one page.
type ExtractedPage struct {
	PageNumber       int            `json:"page_number"`
	Type             PageType       `json:"type"`
	Status           PageStatus     `json:"status"`
	Content          string         `json:"content"`
	ProcessingMethod string         `json:"processing_method"`
	Images           []ImageElement `json:"images"`
	Tables           []TableElement `json:"tables"`
	Error            string         `json:"error,omitempty"`
}

func (p ExtractedPage) Succeeded() bool {
	return p.Status == PageStatusSuccess
}

// FailedPage builds the error outcome for a page; partial content is never kept.
func FailedPage(pageNumber int, pageType PageType, method string, err error) ExtractedPage {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ExtractedPage{
		PageNumber:       pageNumber,
		Type:             pageType,
		Status:           PageStatusError,
		ProcessingMethod: method,
		Images:           []ImageElement{},
		Tables:           []TableElement{},
		Error:            msg,
	}
}
