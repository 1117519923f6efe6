package curriculum

import (
	"strconv"
	"strings"
)

// CompareTopicIDs orders dotted topic codes segment by segment as integers,
// so "1.2" < "1.10" < "2.1". When one id is a prefix of the other the
// shorter sorts first. Non-numeric segments sort after numeric ones and
// compare as strings.
func CompareTopicIDs(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	// "1.01" and "1.1" are numerically equal; keep the order total.
	return strings.Compare(a, b)
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)

	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
