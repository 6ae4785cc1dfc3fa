package domain

import "errors"

// PageRoute selects the extraction strategy for a page. The set of
// implementations is closed: NativeRoute, ScannedRoute and ErrorRoute.
type PageRoute interface {
	Page() int
	pageRoute()
}

type NativeRoute struct {
	PageNumber int
}

type ScannedRoute struct {
	PageNumber int
}

// ErrorRoute carries a page whose classification already failed.
type ErrorRoute struct {
	PageNumber int
	Err        error
}

func (r NativeRoute) Page() int  { return r.PageNumber }
func (r ScannedRoute) Page() int { return r.PageNumber }
func (r ErrorRoute) Page() int   { return r.PageNumber }

func (NativeRoute) pageRoute()  {}
func (ScannedRoute) pageRoute() {}
func (ErrorRoute) pageRoute()   {}

// Route converts a classification into its extraction route.
func (c PageClassification) Route() PageRoute {
	switch c.Classification {
	case PageNative:
		return NativeRoute{PageNumber: c.PageNumber}
	case PageScanned:
		return ScannedRoute{PageNumber: c.PageNumber}
	default:
		reason := c.Reason
		if reason == "" {
			reason = "page classification failed"
		}
		return ErrorRoute{PageNumber: c.PageNumber, Err: errors.New(reason)}
	}
}
