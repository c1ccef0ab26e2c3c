package extract

import "github.com/PuerkitoBio/goquery"

// Strategy is one ranked way of pulling a T out of a document.
type Strategy[T any] func(root *goquery.Selection) (T, bool)

// Cascade evaluates strategies in priority order and returns the first success
// together with its index. The index is -1 when every strategy fails.
func Cascade[T any](root *goquery.Selection, strategies ...Strategy[T]) (T, int) {
	for i, strategy := range strategies {
		if v, ok := strategy(root); ok {
			return v, i
		}
	}

	var zero T
	return zero, -1
}

// BySelectors builds one strategy per selector. Within a selector, matches are
// tried in document order and the first accepted element wins.
func BySelectors[T any](selectors []string, accept func(*goquery.Selection) (T, bool)) []Strategy[T] {
	strategies := make([]Strategy[T], 0, len(selectors))

	for _, selector := range selectors {
		strategies = append(strategies, func(root *goquery.Selection) (T, bool) {
			var result T
			found := false

			root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if v, ok := accept(s); ok {
					result, found = v, true
					return false
				}
				return true
			})

			return result, found
		})
	}

	return strategies
}
