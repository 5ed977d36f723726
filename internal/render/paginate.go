package render

// Paginate lays rows of the given heights out top to bottom and returns the
// row indexes of each page. A row that would push the vertical cursor past
// threshold starts a new page; a row taller than threshold gets a page of its own.
func Paginate(heights []float64, threshold float64) [][]int {
	if len(heights) == 0 {
		return nil
	}

	pages := [][]int{{}}
	cursor := 0.0
	for i, h := range heights {
		current := len(pages) - 1
		if cursor+h > threshold && len(pages[current]) > 0 {
			pages = append(pages, []int{})
			current++
			cursor = 0
		}
		pages[current] = append(pages[current], i)
		cursor += h
	}
	return pages
}
