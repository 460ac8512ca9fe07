package model

import "strings"

const (
	DefaultPageSize uint = 20
	MaxPageSize     uint = 1000
)

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type SortField struct {
	Field     string
	Direction SortDirection
}

// ParseSortField reads "field" as ascending and "-field" as descending.
func ParseSortField(raw string) SortField {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "-") {
		return SortField{Field: raw[1:], Direction: SortDesc}
	}

	return SortField{Field: strings.TrimPrefix(raw, "+"), Direction: SortAsc}
}

// PageRequest selects one page of a result set. Page numbers start at 0.
type PageRequest struct {
	Page uint
	Size uint
	Sort []SortField
}

func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize}
}

func (p PageRequest) Offset() uint {
	return p.Page * p.Size
}

// DevicePage is one slice of a filtered device set. Totals describe the
// whole filtered set, not just this slice.
type DevicePage struct {
	Devices       []*Device
	Number        uint
	Size          uint
	TotalElements uint64
	TotalPages    uint
}

func NewDevicePage(devices []*Device, request PageRequest, total uint64) *DevicePage {
	if devices == nil {
		devices = make([]*Device, 0)
	}

	totalPages := uint(0)
	if request.Size > 0 {
		totalPages = uint((total + uint64(request.Size) - 1) / uint64(request.Size))
	}

	return &DevicePage{
		Devices:       devices,
		Number:        request.Page,
		Size:          request.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}
