package dispatch

import "strings"

// ServerNameFromResourceID extracts the owning server's name from a
// database resource id by taking the third-from-last path segment, e.g.
//
//	/subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Sql/servers/<server>/databases/<db>
//
// This heuristic tracks the cloud vendor's id layout. It is known to be
// fragile if that layout ever changes and must not be extended to new
// resource types without revisiting the assumption.
func ServerNameFromResourceID(id string) string {
	segments := strings.Split(id, "/")
	if len(segments) < 3 {
		return ""
	}
	return segments[len(segments)-3]
}
