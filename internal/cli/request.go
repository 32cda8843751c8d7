package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/samhoque/apikit/pkg/httpclient"
)

var requestMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func newRequestCmd() *cobra.Command {
	var (
		data     string
		params   []string
		headers  []string
		field    string
		skipAuth bool
	)
	cmd := &cobra.Command{
		Use:   "request METHOD ENDPOINT",
		Short: "Send a request through the API client",
		Long: `Send a request with the configured base URL, token and timeout and print
the response data. ENDPOINT may be a path or an absolute URL.

Examples:
  apikit request GET /users --param _limit=2
  apikit request POST /users --data '{"name":"Ann","username":"ann","email":"ann@example.com"}'
  apikit request GET /users/1 --field company.name`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			if !requestMethods[method] {
				return fmt.Errorf("unsupported method %q", args[0])
			}
			cfg := &httpclient.RequestConfig{SkipAuth: skipAuth}
			var err error
			if cfg.Params, err = parseParams(params); err != nil {
				return err
			}
			if cfg.Headers, err = parseHeaders(headers); err != nil {
				return err
			}

			var body any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}

			resp, err := current.client.Do(cmd.Context(), method, args[1], body, cfg)
			if err != nil {
				return err
			}
			return printResponse(cmd, resp, field)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Header as key=value (repeatable)")
	cmd.Flags().StringVarP(&field, "field", "f", "", "Print only this field of the response (gjson path)")
	cmd.Flags().BoolVar(&skipAuth, "skip-auth", false, "Do not send the stored token")
	return cmd
}

func printResponse(cmd *cobra.Command, resp *httpclient.Response, field string) error {
	out := cmd.OutOrStdout()
	if field != "" {
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		res := gjson.GetBytes(raw, field)
		if !res.Exists() {
			return fmt.Errorf("field %q not found in response", field)
		}
		if jsonOutput {
			fmt.Fprintln(out, res.Raw)
		} else {
			fmt.Fprintln(out, res.String())
		}
		return nil
	}

	if jsonOutput {
		printJSON(out, map[string]any{
			"status":     resp.Status,
			"statusText": resp.StatusText,
			"data":       resp.Data,
		})
		return nil
	}
	okLabel.Fprintf(out, "%d %s\n", resp.Status, resp.StatusText)
	switch v := resp.Data.(type) {
	case nil:
	case string:
		fmt.Fprintln(out, v)
	default:
		printJSON(out, v)
	}
	return nil
}

// parseParams turns key=value pairs into request params. Repeated keys
// become a list.
func parseParams(pairs []string) (httpclient.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := httpclient.Params{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		switch existing := params[k].(type) {
		case nil:
			params[k] = v
		case string:
			params[k] = []string{existing, v}
		case []string:
			params[k] = append(existing, v)
		}
	}
	return params, nil
}

func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", p)
		}
		headers[k] = v
	}
	return headers, nil
}
