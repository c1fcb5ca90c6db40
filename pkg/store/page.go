package store

// Page is one window of an ordered id list, in the shape the Dispatch list
// endpoints return.
type Page struct {
	Count int      `json:"count"`
	IDs   []string `json:"-"`
	Next  *int     `json:"next"`
}

// Paginate slices ids by offset and limit. A limit of 0 returns everything after
// offset. Next holds the offset of the following page, or nil on the last page.
func Paginate(ids []string, offset, limit int) Page {
	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := Page{Count: total, IDs: ids[offset:end]}
	if end < total {
		next := end
		page.Next = &next
	}
	return page
}
