// Package translation turns a styled subtitle file into a translated pair of
// subtitle files through one of several providers.
//
// New validates the credentials of the chosen provider kind up front and
// reports every missing key in a single configuration error. Providers share
// a retrying HTTP transport: throttling and server failures back off
// exponentially and honour Retry-After. The GPT provider speaks the
// OpenAI-compatible chat completions API; Baidu requests are MD5-signed and
// Tencent requests use TC3-HMAC-SHA256.
package translation
