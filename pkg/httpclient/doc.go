// Package httpclient provides a JSON HTTP client with a uniform result shape.
//
// Every call returns either a *Response or an *Error. Transport failures,
// timeouts and non-2xx statuses are all normalised into *Error, so callers only
// need to branch on Error.Status (0 network, 408 timeout, otherwise the HTTP
// status).
//
// Basic usage:
//
//	client := httpclient.NewClient("https://api.example.com")
//	resp, err := client.Get(ctx, "/users", &httpclient.RequestConfig{
//		Params: httpclient.Params{"_page": 1},
//	})
//
// Authenticated usage:
//
//	client := httpclient.NewClient(baseURL, httpclient.WithStorage(store))
//	client.SetAuthToken(ctx, token)
//	defer client.ClearAuthToken(ctx)
package httpclient
