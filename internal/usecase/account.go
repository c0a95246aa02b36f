package usecase

import (
	"context"
	"fmt"
	"strings"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

// MsgAccountNameExists is reported when the account name is already taken.
const MsgAccountNameExists = "Account name already exists"

// MsgDuplicatePrevented is reported when a duplicate submission kept the
// user on the form without an explicit message.
const MsgDuplicatePrevented = "Duplicate account name prevented form submission"

// CreateAccount creates an account through the UI.
type CreateAccount struct {
	UI  ports.AccountUI
	API ports.AccountAPI // optional; enables the uniqueness pre-check and ID lookup
	Deps

	log *logging.Logger
}

// NewCreateAccount wires a CreateAccount workflow.
func NewCreateAccount(ui ports.AccountUI, api ports.AccountAPI, deps Deps) *CreateAccount {
	return &CreateAccount{UI: ui, API: api, Deps: deps, log: deps.logger("CreateAccount")}
}

// Execute validates form, checks the name is free, fills and submits the
// form, and verifies the account shows up.
func (uc *CreateAccount) Execute(ctx context.Context, form domain.AccountForm) (res Result) {
	defer guard(&res, uc.log)

	if problems := form.Validate(); len(problems) > 0 {
		return ValidationError(problems[0], problems...)
	}

	if uc.API != nil {
		_, exists, err := uc.API.FindAccountByName(ctx, strings.TrimSpace(form.Name))
		if err != nil {
			return UnknownError(fmt.Sprintf("checking account name: %v", err))
		}
		if exists {
			return ConflictError(MsgAccountNameExists)
		}
	}

	account, err := domain.NewAccount(form)
	if err != nil {
		return fromRuleError(err)
	}

	if err := uc.openForm(ctx, form); err != nil {
		return UnknownError(err.Error())
	}
	if err := uc.UI.SubmitForm(ctx); err != nil {
		uc.trackUnconfirmed(account.Name)
		return UnknownError(err.Error())
	}

	if err := uc.verify(ctx, account); err != nil {
		// Submitted but unverified: soft success with no ID.
		uc.log.Warn("Account %q submitted but not verified: %v", account.Name, err)
		uc.trackUnconfirmed(account.Name)
		return Success("")
	}

	id := uc.resolveID(ctx, account.Name)
	track(uc.Deps, uc.log, tracker.KindAccount, id, account.Name)
	uc.log.Info("Created account %q (id=%s)", account.Name, id)
	return Success(id)
}

// ExecuteWithValidation submits form expecting the application to reject
// it, and reports the validation messages it shows.
func (uc *CreateAccount) ExecuteWithValidation(ctx context.Context, form domain.AccountForm) (res Result) {
	defer guard(&res, uc.log)

	if err := uc.openForm(ctx, form); err != nil {
		return UnknownError(err.Error())
	}
	if err := uc.UI.TrySubmitInvalidForm(ctx); err != nil {
		return UnknownError(err.Error())
	}

	messages, err := uc.UI.VerifyValidationErrors(ctx)
	if err != nil {
		return UnknownError(err.Error())
	}
	if len(messages) > 0 {
		return ValidationError(messages[0], messages...)
	}

	onForm, err := uc.UI.IsOnFormPage(ctx)
	if err != nil {
		return UnknownError(err.Error())
	}
	if onForm {
		return ValidationError("Form submission was blocked without a message")
	}
	uc.trackUnconfirmed(form.Name)
	return UnknownError("Expected validation errors but the form was accepted")
}

// ExecuteForDuplicate submits form for a name that already exists and
// reports how the application refused it.
func (uc *CreateAccount) ExecuteForDuplicate(ctx context.Context, form domain.AccountForm) (res Result) {
	defer guard(&res, uc.log)

	if err := uc.openForm(ctx, form); err != nil {
		return UnknownError(err.Error())
	}
	if err := uc.UI.SubmitForm(ctx); err != nil {
		return UnknownError(err.Error())
	}

	message, err := uc.UI.VerifyConflictError(ctx)
	if err != nil {
		return UnknownError(err.Error())
	}
	if message != "" {
		return ConflictError(message)
	}

	onForm, err := uc.UI.IsOnFormPage(ctx)
	if err != nil {
		return UnknownError(err.Error())
	}
	if onForm {
		return ConflictError(MsgDuplicatePrevented)
	}
	uc.trackUnconfirmed(form.Name)
	return UnknownError("Duplicate account was accepted")
}

func (uc *CreateAccount) openForm(ctx context.Context, form domain.AccountForm) error {
	if err := uc.UI.NavigateToApp(ctx); err != nil {
		return err
	}
	if err := uc.UI.OpenCreateForm(ctx); err != nil {
		return err
	}
	return uc.UI.FillAccountForm(ctx, form)
}

func (uc *CreateAccount) verify(ctx context.Context, account domain.Account) error {
	if err := uc.UI.VerifyCreationSuccess(ctx, account.Name); err != nil {
		return err
	}
	listed, err := uc.UI.IsAccountListed(ctx, account.Name, account.FormattedBalance())
	if err != nil {
		return err
	}
	if !listed {
		return fmt.Errorf("account %q with balance %s is not listed", account.Name, account.FormattedBalance())
	}
	return nil
}

// resolveID prefers the ID the UI observed and falls back to the API.
// The lookup ignores case, so only an exact name match yields an ID.
func (uc *CreateAccount) resolveID(ctx context.Context, name string) string {
	if id := uc.UI.LastCreatedAccountID(); id != "" {
		return id
	}
	if uc.API == nil {
		return ""
	}
	acc, ok, err := uc.API.FindAccountByName(ctx, name)
	if err != nil || !ok || acc.Name != name {
		return ""
	}
	return acc.ID
}

// trackUnconfirmed tracks a name that may or may not have been created, so
// teardown resolves it by name.
func (uc *CreateAccount) trackUnconfirmed(name string) {
	if name = strings.TrimSpace(name); name != "" {
		track(uc.Deps, uc.log, tracker.KindAccount, "", name)
	}
}

// DeleteAccount deletes an account through the UI.
type DeleteAccount struct {
	UI ports.AccountUI
	Deps

	log *logging.Logger
}

// NewDeleteAccount wires a DeleteAccount workflow.
func NewDeleteAccount(ui ports.AccountUI, deps Deps) *DeleteAccount {
	return &DeleteAccount{UI: ui, Deps: deps, log: deps.logger("DeleteAccount")}
}

// Execute deletes the account named name and stops tracking it.
func (uc *DeleteAccount) Execute(ctx context.Context, name string) (res Result) {
	defer guard(&res, uc.log)

	if strings.TrimSpace(name) == "" {
		return ValidationError("Account name is required")
	}
	if err := uc.UI.DeleteAccount(ctx, name); err != nil {
		return UnknownError(err.Error())
	}
	if uc.Tracker != nil && !uc.Tracker.Untrack(tracker.KindAccount, name) {
		uc.log.Debug("Deleted account %q was not tracked", name)
	}
	return Success("")
}
