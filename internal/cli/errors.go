package cli

import (
	"fmt"
	"net/http"

	"github.com/samhoque/apikit/pkg/httpclient"
)

// describeError adds a hint for the API error statuses users hit most.
func describeError(err error) string {
	apiErr, ok := httpclient.AsError(err)
	if !ok {
		return err.Error()
	}
	switch apiErr.Status {
	case httpclient.StatusNetworkError:
		return fmt.Sprintf("%s (check your connection and --base-url)", apiErr.Message)
	case http.StatusUnauthorized:
		return fmt.Sprintf("%s (log in with \"apikit login\")", apiErr.Message)
	case http.StatusForbidden:
		return fmt.Sprintf("%s (you don't have permission)", apiErr.Message)
	case http.StatusNotFound:
		return fmt.Sprintf("%s (resource not found)", apiErr.Message)
	case httpclient.StatusTimeout:
		return fmt.Sprintf("%s (try a larger --timeout)", apiErr.Message)
	default:
		return fmt.Sprintf("%s (status %d)", apiErr.Message, apiErr.Status)
	}
}

func errorOutput(err error) map[string]any {
	out := map[string]any{"error": err.Error()}
	if apiErr, ok := httpclient.AsError(err); ok {
		out["status"] = apiErr.Status
		if apiErr.Data != nil {
			out["data"] = apiErr.Data
		}
	}
	return out
}
