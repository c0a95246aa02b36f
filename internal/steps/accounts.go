package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/usecase"
	"mke2e/internal/world"
)

func registerAccounts(sc *godog.ScenarioContext) {
	sc.Step(`^I am on the Money Keeper application$`, iAmOnTheApplication)
	sc.Step(`^I have access to the account management features$`, iAmOnTheApplication)
	sc.Step(`^I have an existing account named "([^"]*)"$`, iHaveAnExistingAccountNamed)

	sc.Step(`^I create a new bank account with the following details:$`, iCreateANewAccount)
	sc.Step(`^I try to create another account named "([^"]*)"$`, iTryToCreateAnotherAccountNamed)
	sc.Step(`^I try to create a bank account with:$`, iTrySubmitAccountForm)
	sc.Step(`^I try to submit with:$`, iTrySubmitAccountForm)
	sc.Step(`^I delete the account "([^"]*)"$`, iDeleteTheAccount)

	sc.Step(`^I should see the account "([^"]*)" in my list$`, iShouldSeeTheAccount)
	sc.Step(`^the account "([^"]*)" should no longer appear in my list$`, theAccountShouldNotAppear)
	sc.Step(`^the total balance should be updated$`, theTotalBalanceShouldBeUpdated)
	sc.Step(`^I should receive a conflict error$`, iShouldReceiveAConflictError)
	sc.Step(`^I should see an error about duplicate account name$`, iShouldSeeADuplicateNameError)
	sc.Step(`^the account should not be created$`, theAccountShouldNotBeCreated)
	sc.Step(`^I should see validation errors$`, iShouldSeeValidationErrors)
}

func accountUI(w *world.World) (ports.AccountUI, error) {
	if w.Ports.AccountUI == nil {
		return nil, ErrNoBrowser
	}
	return w.Ports.AccountUI, nil
}

func iAmOnTheApplication(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	return ui.NavigateToApp(ctx)
}

func iHaveAnExistingAccountNamed(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.Ports.AccountAPI == nil {
		return fmt.Errorf("seeding account %q: no account API", name)
	}
	form := domain.AccountForm{
		Name:           w.UniqueNameFor(name),
		Type:           string(domain.AccountTypeBank),
		InitialBalance: "100",
		Currency:       "USD",
	}
	res := usecase.NewSeedAccount(w.Ports.AccountAPI, w.Deps()).Execute(ctx, form)
	if !res.IsSuccess() {
		return fmt.Errorf("seeding account %q: %s", form.Name, res)
	}
	return nil
}

// accountForm reads an account table, replacing the name with the
// scenario's unique variant of it.
func accountForm(w *world.World, table *godog.Table) (domain.AccountForm, error) {
	rows, err := tableMap(table)
	if err != nil {
		return domain.AccountForm{}, err
	}
	form := domain.AccountFormFromTable(rows)
	if form.Name != "" {
		form.Name = w.UniqueNameFor(form.Name)
	}
	return form, nil
}

func iCreateANewAccount(ctx context.Context, table *godog.Table) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	form, err := accountForm(w, table)
	if err != nil {
		return err
	}
	w.RecordResult(usecase.NewCreateAccount(ui, w.Ports.AccountAPI, w.Deps()).Execute(ctx, form))
	return nil
}

func iTryToCreateAnotherAccountNamed(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	form := domain.AccountForm{
		Name:           w.ResolveName(name),
		Type:           string(domain.AccountTypeBank),
		InitialBalance: "50",
		Currency:       "USD",
	}
	w.RecordResult(usecase.NewCreateAccount(ui, w.Ports.AccountAPI, w.Deps()).ExecuteForDuplicate(ctx, form))
	return nil
}

func iTrySubmitAccountForm(ctx context.Context, table *godog.Table) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	form, err := accountForm(w, table)
	if err != nil {
		return err
	}
	w.RecordResult(usecase.NewCreateAccount(ui, w.Ports.AccountAPI, w.Deps()).ExecuteWithValidation(ctx, form))
	return nil
}

func iDeleteTheAccount(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	w.RecordResult(usecase.NewDeleteAccount(ui, w.Deps()).Execute(ctx, w.ResolveName(name)))
	return nil
}

func iShouldSeeTheAccount(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if !w.LastResult.IsSuccess() {
		return fmt.Errorf("account %q was not created: %s", name, w.LastResult)
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	listed, err := ui.IsAccountListed(ctx, w.ResolveName(name), "")
	if err != nil {
		return err
	}
	if !listed {
		return fmt.Errorf("account %q is not in the list", w.ResolveName(name))
	}
	return nil
}

func theAccountShouldNotAppear(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	listed, err := ui.IsAccountListed(ctx, w.ResolveName(name), "")
	if err != nil {
		return err
	}
	if listed {
		return fmt.Errorf("account %q is still listed", w.ResolveName(name))
	}
	return nil
}

func theTotalBalanceShouldBeUpdated(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := accountUI(w)
	if err != nil {
		return err
	}
	return ui.VerifyTotalBalanceUpdated(ctx)
}

func iShouldReceiveAConflictError(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.Kind != usecase.KindConflictError {
		return fmt.Errorf("expected a conflict error, got %s", w.LastResult)
	}
	return nil
}

func iShouldSeeADuplicateNameError(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	msg := w.LastResult.Message
	if w.LastResult.Kind != usecase.KindConflictError || !(containsFold(msg, "exist") || containsFold(msg, "duplicate")) {
		return fmt.Errorf("expected a duplicate name error, got %s", w.LastResult)
	}
	return nil
}

func theAccountShouldNotBeCreated(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.IsSuccess() {
		return fmt.Errorf("expected the account to be refused, got %s", w.LastResult)
	}
	return nil
}

func iShouldSeeValidationErrors(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.Kind != usecase.KindValidationError {
		return fmt.Errorf("expected validation errors, got %s", w.LastResult)
	}
	return nil
}
