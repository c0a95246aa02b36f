package web

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/pkg/logging"
)

// locatorBase names the embedded interface so its Locator method is still
// promoted onto fakeLocator.
type locatorBase interface{ playwright.Locator }

// fakeLocator answers from a fixed description of one element set. Nested
// lookups return the same element set.
type fakeLocator struct {
	locatorBase
	visible bool
	count   int
	texts   []string
}

func (l *fakeLocator) Locator(interface{}, ...playwright.LocatorLocatorOptions) playwright.Locator {
	return l
}
func (l *fakeLocator) First() playwright.Locator  { return l }
func (l *fakeLocator) Nth(int) playwright.Locator { return l }
func (l *fakeLocator) IsVisible(...playwright.LocatorIsVisibleOptions) (bool, error) {
	return l.visible, nil
}
func (l *fakeLocator) Count() (int, error) { return l.count, nil }
func (l *fakeLocator) AllTextContents() ([]string, error) {
	return l.texts, nil
}
func (l *fakeLocator) TextContent(...playwright.LocatorTextContentOptions) (string, error) {
	if len(l.texts) == 0 {
		return "", nil
	}
	return l.texts[0], nil
}

type fakePage struct {
	playwright.Page
	url        string
	locators   map[string]*fakeLocator
	onResponse func(playwright.Response)
}

func (p *fakePage) URL() string { return p.url }
func (p *fakePage) Locator(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	if l, ok := p.locators[selector]; ok {
		return l
	}
	return &fakeLocator{}
}
func (p *fakePage) OnResponse(fn func(playwright.Response)) { p.onResponse = fn }

type fakeRequest struct {
	playwright.Request
	method string
}

func (r *fakeRequest) Method() string { return r.method }

type fakeResponse struct {
	playwright.Response
	url    string
	method string
	status int
	body   string
}

func (r *fakeResponse) URL() string                 { return r.url }
func (r *fakeResponse) Status() int                 { return r.status }
func (r *fakeResponse) Request() playwright.Request { return &fakeRequest{method: r.method} }
func (r *fakeResponse) JSON(v interface{}) error    { return json.Unmarshal([]byte(r.body), v) }

func testOptions() Options {
	return Options{BaseURL: "http://app.test/", ActionTimeout: 150 * time.Millisecond, Logger: logging.Discard()}
}

func TestAccountPage_CapturesCreatedID(t *testing.T) {
	page := &fakePage{locators: map[string]*fakeLocator{}}
	p := NewAccountPage(page, testOptions())
	require.NotNil(t, page.onResponse)

	page.onResponse(&fakeResponse{url: "http://api.test/api/accounts", method: "GET", status: 200, body: `[]`})
	assert.Empty(t, p.LastCreatedAccountID())

	page.onResponse(&fakeResponse{url: "http://api.test/api/accounts", method: "POST", status: 409, body: `{"id":1}`})
	assert.Empty(t, p.LastCreatedAccountID())

	page.onResponse(&fakeResponse{url: "http://api.test/api/accounts?x=1", method: "POST", status: 201, body: `{"id":42}`})
	assert.Equal(t, "42", p.LastCreatedAccountID())

	page.onResponse(&fakeResponse{url: "http://api.test/api/accounts/", method: "POST", status: 200, body: `{"id":"acc-7"}`})
	assert.Equal(t, "acc-7", p.LastCreatedAccountID())
}

func TestAccountPage_IsOnFormPage(t *testing.T) {
	page := &fakePage{locators: map[string]*fakeLocator{selFormMarker: {count: 1}}}
	p := NewAccountPage(page, testOptions())

	onForm, err := p.IsOnFormPage(context.Background())
	require.NoError(t, err)
	assert.True(t, onForm)

	page.locators[selFormMarker].count = 0
	onForm, err = p.IsOnFormPage(context.Background())
	require.NoError(t, err)
	assert.False(t, onForm)
}

func TestAccountPage_ConflictAbsentIsNotAnError(t *testing.T) {
	page := &fakePage{locators: map[string]*fakeLocator{}}
	p := NewAccountPage(page, testOptions())

	msg, err := p.VerifyConflictError(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestAccountPage_ValidationMessages(t *testing.T) {
	page := &fakePage{locators: map[string]*fakeLocator{
		selValidationError: {visible: true, texts: []string{" Account name is required ", "", "Currency is required"}},
	}}
	p := NewAccountPage(page, testOptions())

	msgs, err := p.VerifyValidationErrors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Account name is required", "Currency is required"}, msgs)
}

func TestAccountPage_IsAccountListed(t *testing.T) {
	row := &fakeLocator{visible: true, texts: []string{"$1,250.50"}}
	page := &fakePage{locators: map[string]*fakeLocator{hasTextSelector("tr", "Savings"): row}}
	p := NewAccountPage(page, testOptions())

	listed, err := p.IsAccountListed(context.Background(), "Missing", "")
	require.NoError(t, err)
	assert.False(t, listed)

	listed, err = p.IsAccountListed(context.Background(), "Savings", "")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = p.IsAccountListed(context.Background(), "Savings", "1250.5")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = p.IsAccountListed(context.Background(), "Savings", "99")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestWaitVisibleAndHidden(t *testing.T) {
	banner := &fakeLocator{visible: true}
	p := NewCategoryPage(&fakePage{}, testOptions())
	ctx := context.Background()

	require.NoError(t, p.waitVisible(ctx, banner, "banner"))
	err := p.waitHidden(ctx, banner, "banner")
	assert.True(t, isPollTimeout(err))
	assert.ErrorContains(t, err, "banner to be hidden")

	banner.visible = false
	assert.NoError(t, p.waitHidden(ctx, banner, "banner"))
	shown, err := p.appears(ctx, banner, "banner")
	require.NoError(t, err)
	assert.False(t, shown)
}

func TestCategoryPage_ListCategories(t *testing.T) {
	page := &fakePage{locators: map[string]*fakeLocator{
		selCategoryName: {texts: []string{" Food ", "Rent", "  "}},
	}}
	p := NewCategoryPage(page, testOptions())

	names, err := p.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Rent"}, names)
}

func TestWaitForPath_TimesOut(t *testing.T) {
	page := &fakePage{url: "http://app.test/login"}
	p := NewCategoryPage(page, testOptions())

	err := p.waitForPath(context.Background(), "/categories")
	assert.True(t, isPollTimeout(err))

	page.url = "http://app.test/categories?tab=1"
	assert.NoError(t, p.waitForPath(context.Background(), "/categories"))
}

func TestBalanceMatches(t *testing.T) {
	tests := []struct {
		expected, shown string
		want            bool
	}{
		{"1000", "$1,000.00", true},
		{"1,250.5", "€1,250.50", true},
		{"0", "$0.00", true},
		{"100", "$100.01", false},
		{"abc", "$1.00", false},
		{"1", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, balanceMatches(tt.expected, tt.shown), "%q vs %q", tt.expected, tt.shown)
	}
}

func TestSelectors(t *testing.T) {
	assert.Equal(t, `text="Food"`, textSelector("Food"))
	assert.Equal(t, `tr:has-text("say \"hi\"")`, hasTextSelector("tr", `say "hi"`))
	assert.Equal(t, `a\\b`, escapeSelector(`a\b`))
}

func TestNestedBelow(t *testing.T) {
	parent := playwright.Rect{X: 10, Y: 100}
	assert.True(t, nestedBelow(parent, playwright.Rect{X: 40, Y: 130}))
	assert.False(t, nestedBelow(parent, playwright.Rect{X: 40, Y: 90}))
	assert.False(t, nestedBelow(parent, playwright.Rect{X: 80, Y: 130}))
}

func TestURLHasPath(t *testing.T) {
	assert.True(t, urlHasPath("http://app.test/accounts", "/accounts"))
	assert.False(t, urlHasPath("http://app.test/?next=/accounts", "/accounts"))
}
