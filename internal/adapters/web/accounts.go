package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"mke2e/internal/domain"
	"mke2e/internal/poll"
	"mke2e/internal/ports"
)

const (
	selAccountForm         = `[data-testid="account-form"]`
	selAccountName         = `[data-testid="input-account-name"]`
	selAccountType         = `[data-testid="select-account-type"]`
	selAccountBalance      = `[data-testid="input-account-balance"] input`
	selAccountCurrency     = `.currency-select`
	selAccountDescription  = `[data-testid="input-account-description"]`
	selSubmit              = `[data-testid="button-submit"]`
	selTotalBalance        = `[data-testid="total-balance"]`
	selDeleteAccountButton = `[data-testid="delete-account-button"]`
	selConflictError       = `.error-message, :text("already exists")`
	selValidationError     = `.error, .validation-error, .el-form-item__error`
	selConfirmButton       = `button:has-text("Confirm"), button:has-text("Delete"), button:has-text("Yes")`
	selFormMarker          = `[data-testid="account-form"], input[name="accountName"]`

	accountsPath        = "/accounts"
	accountsAPISuffix   = "/api/accounts"
	addAccountLabel     = "Add Account"
	accountCreatedText  = "Account created successfully"
	defaultCurrency     = "USD"
	balanceColumnOffset = 2
)

// AccountPage implements ports.AccountUI on the accounts screen.
type AccountPage struct {
	basePage

	mu            sync.Mutex
	lastCreatedID string
}

var _ ports.AccountUI = (*AccountPage)(nil)

// NewAccountPage binds an AccountPage to page. It watches the page's
// network traffic to learn the ID of each created account.
func NewAccountPage(page playwright.Page, opts Options) *AccountPage {
	p := &AccountPage{basePage: newBasePage(page, opts, "AccountPage")}
	page.OnResponse(p.observeResponse)
	return p
}

func (p *AccountPage) observeResponse(resp playwright.Response) {
	if !isCreateResponse(resp.URL(), resp.Request().Method(), resp.Status(), accountsAPISuffix) {
		return
	}
	var payload map[string]any
	if err := resp.JSON(&payload); err != nil {
		p.logger.Warn("Failed to parse account creation response: %v", err)
		return
	}
	id := idFromPayload(payload)
	if id == "" {
		return
	}
	p.mu.Lock()
	p.lastCreatedID = id
	p.mu.Unlock()
	p.logger.Debug("Captured created account ID: %s", id)
}

// LastCreatedAccountID returns the ID of the most recent account created
// through this page, or "".
func (p *AccountPage) LastCreatedAccountID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCreatedID
}

// NavigateToApp opens the accounts screen.
func (p *AccountPage) NavigateToApp(ctx context.Context) error {
	return p.gotoPath(ctx, accountsPath)
}

// OpenCreateForm opens the new-account form.
func (p *AccountPage) OpenCreateForm(ctx context.Context) error {
	button := p.page.Locator(hasTextSelector("button", addAccountLabel)).First()
	if err := p.click(ctx, button, "add account button"); err != nil {
		return err
	}
	return p.waitVisible(ctx, p.page.Locator(selAccountForm), "account form")
}

// FillAccountForm types form into the open account form. The currency
// select already shows USD, so it is left alone for USD.
func (p *AccountPage) FillAccountForm(ctx context.Context, form domain.AccountForm) error {
	if err := p.waitVisible(ctx, p.page.Locator(selAccountForm), "account form"); err != nil {
		return err
	}
	p.logger.Debug("Filling account form for %q", form.Name)

	if err := p.fill(ctx, p.page.Locator(selAccountName), "account name", form.Name); err != nil {
		return err
	}
	if form.Type != "" {
		if err := p.chooseOption(ctx, selAccountType, "account type", form.Type); err != nil {
			return err
		}
	}
	if err := p.fill(ctx, p.page.Locator(selAccountBalance), "initial balance", form.InitialBalance); err != nil {
		return err
	}
	if form.Currency != "" && form.Currency != defaultCurrency {
		if err := p.chooseOption(ctx, selAccountCurrency, "currency", form.Currency); err != nil {
			return err
		}
	}
	if form.Description != "" {
		if err := p.fill(ctx, p.page.Locator(selAccountDescription), "description", form.Description); err != nil {
			return err
		}
	}
	return nil
}

// chooseOption opens a dropdown and clicks the option labelled value.
func (p *AccountPage) chooseOption(ctx context.Context, selector, what, value string) error {
	if err := p.click(ctx, p.page.Locator(selector), what+" select"); err != nil {
		return err
	}
	option := p.page.Locator(textSelector(value)).First()
	return p.click(ctx, option, fmt.Sprintf("%s option %q", what, value))
}

// SubmitForm clicks the form's submit button.
func (p *AccountPage) SubmitForm(ctx context.Context) error {
	return p.click(ctx, p.page.Locator(selSubmit), "submit button")
}

// IsAccountListed reports whether a row for name is shown with
// expectedBalance. Balances are compared numerically to two decimals.
func (p *AccountPage) IsAccountListed(ctx context.Context, name, expectedBalance string) (bool, error) {
	row := p.page.Locator(hasTextSelector("tr", name)).First()
	if err := p.waitVisible(ctx, row, fmt.Sprintf("account row %q", name)); err != nil {
		if isPollTimeout(err) {
			p.logger.Debug("Account %q is not listed", name)
			return false, nil
		}
		return false, err
	}
	if expectedBalance == "" {
		return true, nil
	}

	text, err := row.Locator("td").Nth(balanceColumnOffset).TextContent()
	if err != nil {
		return false, fmt.Errorf("reading balance of %q: %w", name, err)
	}
	ok := balanceMatches(expectedBalance, text)
	p.logger.Debug("Account %q balance: expected %q, shown %q, match %t", name, expectedBalance, text, ok)
	return ok, nil
}

// VerifyCreationSuccess waits for the success notice, or for the list to
// show the new account.
func (p *AccountPage) VerifyCreationSuccess(ctx context.Context, name string) error {
	notice := p.page.Locator(textSelector(accountCreatedText))
	row := p.page.Locator(hasTextSelector("tr", name))
	return poll.Eventually(ctx, fmt.Sprintf("confirmation that %q was created", name), poll.DefaultInterval, p.timeout,
		func(context.Context) (bool, error) {
			if shown, err := notice.IsVisible(); err != nil || shown {
				return shown, err
			}
			if !urlHasPath(p.page.URL(), accountsPath) {
				return false, nil
			}
			return row.First().IsVisible()
		})
}

// VerifyTotalBalanceUpdated waits for the total balance to be shown.
func (p *AccountPage) VerifyTotalBalanceUpdated(ctx context.Context) error {
	total := p.page.Locator(selTotalBalance)
	if err := p.waitVisible(ctx, total, "total balance"); err != nil {
		return err
	}
	text, err := total.TextContent()
	if err != nil {
		return fmt.Errorf("reading total balance: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("total balance is empty")
	}
	p.logger.Debug("Total balance shows %q", text)
	return nil
}

// VerifyConflictError returns the visible duplicate-name message, or "".
func (p *AccountPage) VerifyConflictError(ctx context.Context) (string, error) {
	banner := p.page.Locator(selConflictError).First()
	shown, err := p.appears(ctx, banner, "conflict message")
	if err != nil || !shown {
		return "", err
	}
	text, err := banner.TextContent()
	if err != nil {
		return "", fmt.Errorf("reading conflict message: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// VerifyValidationErrors returns every visible validation message.
func (p *AccountPage) VerifyValidationErrors(ctx context.Context) ([]string, error) {
	errs := p.page.Locator(selValidationError)
	shown, err := p.appears(ctx, errs.First(), "validation messages")
	if err != nil || !shown {
		return nil, err
	}
	texts, err := errs.AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("reading validation messages: %w", err)
	}
	return nonEmpty(texts), nil
}

// IsOnFormPage reports whether the account form is still displayed.
func (p *AccountPage) IsOnFormPage(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := p.page.Locator(selFormMarker).Count()
	if err != nil {
		return false, fmt.Errorf("looking for account form: %w", err)
	}
	return n > 0, nil
}

// TrySubmitInvalidForm submits the form as it is, opening it first when
// it is not displayed.
func (p *AccountPage) TrySubmitInvalidForm(ctx context.Context) error {
	onForm, err := p.IsOnFormPage(ctx)
	if err != nil {
		return err
	}
	if !onForm {
		if err := p.NavigateToApp(ctx); err != nil {
			return err
		}
		if err := p.OpenCreateForm(ctx); err != nil {
			return err
		}
	}
	return p.SubmitForm(ctx)
}

// DeleteAccount deletes the account named name from the list, confirming
// the dialog when one is shown.
func (p *AccountPage) DeleteAccount(ctx context.Context, name string) error {
	if err := p.NavigateToApp(ctx); err != nil {
		return err
	}
	row := p.page.Locator(hasTextSelector("tr", name))
	button := row.Locator(selDeleteAccountButton).First()
	if err := p.waitVisible(ctx, button, fmt.Sprintf("delete button for %q", name)); err != nil {
		return fmt.Errorf("delete button not found for account %q: %w", name, err)
	}
	if err := button.Click(); err != nil {
		return fmt.Errorf("clicking delete for %q: %w", name, err)
	}

	confirm := p.page.Locator(selConfirmButton).First()
	shown, err := p.appears(ctx, confirm, "delete confirmation")
	if err != nil {
		return err
	}
	if shown {
		if err := confirm.Click(); err != nil {
			return fmt.Errorf("confirming deletion of %q: %w", name, err)
		}
	} else {
		p.logger.Debug("No confirmation dialog for %q", name)
	}
	return p.waitHidden(ctx, row.First(), fmt.Sprintf("account row %q", name))
}

// isCreateResponse reports whether a response is a successful POST to the
// collection ending in suffix.
func isCreateResponse(rawURL, method string, status int, suffix string) bool {
	if method != http.MethodPost {
		return false
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(pathOf(rawURL), "/"), suffix)
}

func pathOf(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}

// idFromPayload extracts the "id" field of a decoded JSON object.
func idFromPayload(payload map[string]any) string {
	switch id := payload["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// normalizeBalance turns displayed money such as "$1,000.00" into "1000.00".
func normalizeBalance(text string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, text)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), true
}

func balanceMatches(expected, shown string) bool {
	want, ok := normalizeBalance(expected)
	if !ok {
		return false
	}
	got, ok := normalizeBalance(shown)
	return ok && want == got
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
