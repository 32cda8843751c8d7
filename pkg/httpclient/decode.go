package httpclient

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeData converts resp.Data into T using the json field tags of T.
// A nil response or nil data yields the zero value.
func DecodeData[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || resp.Data == nil {
		return out, nil
	}
	if v, ok := resp.Data.(T); ok {
		return v, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(resp.Data); err != nil {
		return out, fmt.Errorf("decode response data: %w", err)
	}
	return out, nil
}
