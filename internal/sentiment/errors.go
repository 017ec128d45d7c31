package sentiment

import "fmt"

type errCountMismatch struct {
	want, got int
}

func (e errCountMismatch) Error() string {
	return fmt.Sprintf("classifier returned %d results for %d segments", e.got, e.want)
}
