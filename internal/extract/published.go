package extract

import (
	"strings"
	"time"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// ParsePublishedDate reads the publish date that follows the last '-' of a
// publication descriptor such as "Area SEND full inspection, pdf - 15 July 2024".
func ParsePublishedDate(descriptor string) (inspection.Date, bool) {
	i := strings.LastIndex(descriptor, "-")
	if i < 0 {
		return inspection.Date{}, false
	}
	s := strings.TrimSpace(descriptor[i+1:])
	s = strings.TrimSuffix(s, ".pdf")
	for _, layout := range dayMonthYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inspection.DateOf(t), true
		}
	}
	return inspection.Date{}, false
}
