package conversation

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListParams selects one page of an owner's conversations.
type ListParams struct {
	OwnerID  string
	Archived bool
	Tag      string
	Page     int
	PageSize int
}

// Normalize fills defaults and rejects non-positive paging values.
func (p ListParams) Normalize() (ListParams, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		return p, invalidf("page must be a positive integer")
	}
	if p.PageSize < 1 {
		return p, invalidf("page size must be a positive integer")
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p, nil
}

func (p ListParams) filter() Filter {
	f := Filter{OwnerID: p.OwnerID, Archived: p.Archived}
	if p.Tag != "" {
		tag := p.Tag
		f.Tag = &tag
	}
	return f
}

// Page is a single catalog page plus the total count of matching conversations.
type Page struct {
	Items    []Summary `json:"conversations"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"limit"`
}

// TotalPages is ceil(Total / PageSize).
func (p Page) TotalPages() int64 {
	if p.PageSize <= 0 {
		return 0
	}
	size := int64(p.PageSize)
	return (p.Total + size - 1) / size
}
