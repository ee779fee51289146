package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-from-html/internal/domain"
)

type fakeConverter struct {
	got  domain.ConversionRequest
	resp domain.Response
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, req domain.ConversionRequest) (domain.Response, error) {
	f.got = req
	return f.resp, f.err
}

func newApp(conv Converter) *fiber.App {
	app := fiber.New()
	app.Post("/convert", NewConvertHandler(conv).Handle)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHandle_Created(t *testing.T) {
	conv := &fakeConverter{resp: domain.Created(domain.ConversionResult{Key: "acme/tmp/url.pdf", Size: 42})}
	app := newApp(conv)

	resp, body := post(t, app, `{"url":"https://example.com","folder":"tmp/","wkhtmltopdf_options":{"title":"T","dpi":300}}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"status":201,"file_key":"acme/tmp/url.pdf","file_size":42}`, body)

	require.NotNil(t, conv.got.URL)
	assert.Equal(t, "https://example.com", *conv.got.URL)
	require.NotNil(t, conv.got.Options)
	assert.Equal(t, "T", *conv.got.Options.Title)
}

func TestHandle_BadRequestMirrorsStatus(t *testing.T) {
	app := newApp(&fakeConverter{resp: domain.BadRequest(domain.MsgNoSource)})

	resp, body := post(t, app, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out domain.Response
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, http.StatusBadRequest, out.Status)

	var msg string
	require.NoError(t, json.Unmarshal([]byte(out.Body), &msg))
	assert.Equal(t, domain.MsgNoSource, msg)
}

func TestHandle_InvalidJSON(t *testing.T) {
	conv := &fakeConverter{}
	app := newApp(conv)

	resp, _ := post(t, app, `{"url":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, conv.got.URL)
}

func TestHandle_ConverterErrorIs500(t *testing.T) {
	app := newApp(&fakeConverter{err: errors.New("fetch failed")})

	resp, _ := post(t, app, `{"file_key":"missing.html"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(nil)
	require.NoError(t, err)
	_, err = req.Source()
	assert.ErrorIs(t, err, domain.ErrNoSource)

	_, err = DecodeRequest([]byte(`[1,2]`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	req, err = DecodeRequest([]byte(`{"html_string":"<p/>","unexpected":true}`))
	require.NoError(t, err)
	require.NotNil(t, req.HTMLString)
	assert.Equal(t, "<p/>", *req.HTMLString)
}
