package e2etest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type Client struct {
	client *http.Client
	url    string
}

// NewClient creates an HTTP client with a cookie jar so that the web session survives between requests.
func NewClient(url string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		client: &http.Client{Jar: jar},
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return fmt.Errorf("close response body: %w", err)
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return fmt.Errorf("close response body: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, fmt.Errorf("create request with context: %w", err)
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	var (
		err  error
		resp *http.Response
	)
	if resp, err = c.Get(ctx, urlPath); err != nil {
		return nil, fmt.Errorf("client get: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return documentFrom(resp)
}

// PostForm posts values to urlPath and returns the response after redirects.
func (c *Client) PostForm(ctx context.Context, urlPath string, values neturl.Values) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request with context: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func documentFrom(resp *http.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if req, err = http.NewRequest(method, c.url+urlPath, body); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req.WithContext(ctx), nil
}

// Register creates an account through the registration form and returns the page the server lands on.
func (c *Client) Register(ctx context.Context, email, password string) (*goquery.Document, error) {
	doc, err := c.GetDoc(ctx, "/register")
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc, err = c.SubmitForm(ctx, doc, "/register", map[string]string{
		"Email":            email,
		"Password":         password,
		"Confirm password": password,
	}); err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}
	return doc, nil
}

// Login signs in through the login form and returns the page the server lands on.
func (c *Client) Login(ctx context.Context, email, password string) (*goquery.Document, error) {
	doc, err := c.GetDoc(ctx, "/login")
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc, err = c.SubmitForm(ctx, doc, "/login", map[string]string{
		"Email":    email,
		"Password": password,
	}); err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}
	return doc, nil
}

// Logout submits the sign out form of the navigation.
func (c *Client) Logout(ctx context.Context, doc *goquery.Document) (*goquery.Document, error) {
	doc, err := c.SubmitForm(ctx, doc, "/logout", nil)
	if err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}
	return doc, nil
}

// formValues collects what a browser would submit for form without pressing a button: named inputs, checked
// checkboxes and radios, selected options and textareas.
func formValues(form *goquery.Selection) neturl.Values {
	values := neturl.Values{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		value, hasValue := input.Attr("value")
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); !checked {
				return
			}
			if !hasValue {
				value = "on"
			}
		case "submit", "button", "image":
			return
		}
		values.Add(name, value)
	})
	form.Find("select[name]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		option := sel.Find("option[selected]").First()
		if option.Length() == 0 {
			option = sel.Find("option").First()
		}
		if option.Length() > 0 {
			values.Add(name, option.AttrOr("value", option.Text()))
		}
	})
	form.Find("textarea[name]").Each(func(_ int, textarea *goquery.Selection) {
		name, _ := textarea.Attr("name")
		values.Add(name, textarea.Text())
	})
	return values
}

// fieldName finds the name of the input, textarea or select labelled labelText.
func fieldName(form *goquery.Selection, labelText string) (string, error) {
	field, err := FindInputForLabel(form, labelText)
	if err != nil {
		if field, err = FindSelectForLabel(form, labelText); err != nil {
			return "", fmt.Errorf("find field for label %s: %w", labelText, err)
		}
	}
	name, exists := field.Attr("name")
	if !exists {
		return "", fmt.Errorf("field has no name attribute (label: %s)", labelText)
	}
	return name, nil
}

// SubmitForm submits a form in the doc identified with action formActionUrlPath and returns the response document.
// formFields is a map of label text to value. The function will find the input by label and set its value; the
// other fields keep the values the page rendered.
func (c *Client) SubmitForm(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	formFields map[string]string,
) (*goquery.Document, error) {
	return c.SubmitFormWith(ctx, doc, formActionURLPath, formFields, nil)
}

// SubmitFormWith is [Client.SubmitForm] that also sets raw named values, e.g. the value of the pressed button.
//
// A 422 Unprocessable Entity response is returned as a document too because it re-renders the form with errors.
func (c *Client) SubmitFormWith(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	formFields map[string]string,
	raw neturl.Values,
) (*goquery.Document, error) {
	form, err := FindForm(doc, formActionURLPath)
	if err != nil {
		return nil, fmt.Errorf("find form: %w", err)
	}
	formData := formValues(form)
	for labelText, value := range formFields {
		var name string
		if name, err = fieldName(form, labelText); err != nil {
			return nil, fmt.Errorf("form_action %s: %w", formActionURLPath, err)
		}
		formData.Set(name, value)
	}
	for name, values := range raw {
		formData[name] = values
	}

	resp, err := c.PostForm(ctx, formActionURLPath, formData)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return documentFrom(resp)
}
