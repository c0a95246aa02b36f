package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/usecase"
	"mke2e/internal/world"
)

const listedCategoriesKey = "listed-categories"

func registerCategories(sc *godog.ScenarioContext) {
	sc.Step(`^the user is on the Category Management page$`, theUserIsOnTheCategoryPage)
	sc.Step(`^I have access to the category management features$`, theUserIsOnTheCategoryPage)
	sc.Step(`^a category "([^"]*)" with icon "([^"]*)" and type "([^"]*)" exists$`, aCategoryExists)
	sc.Step(`^a category "([^"]*)" with icon "([^"]*)" and type "([^"]*)" and parent "([^"]*)" exists$`, aChildCategoryExists)
	sc.Step(`^categories "([^"]*)", "([^"]*)", and "([^"]*)" exist$`, categoriesExist)

	sc.Step(`^I create a category with name "([^"]*)", icon "([^"]*)",? (?:and )?type "([^"]*)"$`, iCreateACategory)
	sc.Step(`^I create a category with name "([^"]*)", icon "([^"]*)", type "([^"]*)",? and parent "([^"]*)"$`, iCreateAChildCategory)
	sc.Step(`^I create another category with name "([^"]*)", icon "([^"]*)", type "([^"]*)"$`, iCreateAnotherCategory)
	sc.Step(`^I try to create a category without providing a name$`, iCreateACategoryWithoutAName)
	sc.Step(`^I create a category with a name longer than the maximum allowed length$`, iCreateACategoryWithALongName)
	sc.Step(`^I update category "([^"]*)" to have parent "([^"]*)"$`, iUpdateCategoryParent)
	sc.Step(`^I delete the category "([^"]*)"$`, iDeleteTheCategory)
	sc.Step(`^I list all categories$`, iListAllCategories)

	sc.Step(`^the category "([^"]*)" should be created successfully$`, theCategoryShouldBeCreated)
	sc.Step(`^the category "([^"]*)" should be created as a child of "([^"]*)"$`, theCategoryShouldBeAChildOf)
	sc.Step(`^the category "([^"]*)" should be a child of "([^"]*)"$`, theCategoryShouldBeAChildOf)
	sc.Step(`^the category (?:creation|update|deletion) should fail with error "([^"]*)"$`, theOperationShouldFailWith)
	sc.Step(`^the (?:update|deletion) should fail with error "([^"]*)"$`, theOperationShouldFailWith)
	sc.Step(`^the category should not be created$`, theCategoryShouldNotBeCreated)
	sc.Step(`^the category "([^"]*)" should no longer appear in my list$`, theCategoryShouldNotAppear)
	sc.Step(`^I should see an error message "([^"]*)"$`, iShouldSeeAnErrorMessage)
	sc.Step(`^I should see "([^"]*)", "([^"]*)", and "([^"]*)" in the category list$`, iShouldSeeInTheCategoryList)
}

func categoryUI(w *world.World) (ports.CategoryUI, error) {
	if w.Ports.CategoryUI == nil {
		return nil, ErrNoBrowser
	}
	return w.Ports.CategoryUI, nil
}

func theUserIsOnTheCategoryPage(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	return ui.NavigateToCategoryPage(ctx)
}

func seedCategory(ctx context.Context, w *world.World, form domain.CategoryForm) error {
	if w.Ports.CategoryAPI == nil {
		return fmt.Errorf("seeding category %q: no category API", form.Name)
	}
	res := usecase.NewSeedCategory(w.Ports.CategoryAPI, w.Deps()).Execute(ctx, form)
	if !res.IsSuccess() {
		return fmt.Errorf("seeding category %q: %s", form.Name, res)
	}
	return nil
}

func aCategoryExists(ctx context.Context, name, icon, typ string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	return seedCategory(ctx, w, categoryForm(w, name, icon, typ, ""))
}

func aChildCategoryExists(ctx context.Context, name, icon, typ, parent string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	return seedCategory(ctx, w, categoryForm(w, name, icon, typ, parent))
}

func categoriesExist(ctx context.Context, a, b, c string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	for _, name := range []string{a, b, c} {
		if err := seedCategory(ctx, w, categoryForm(w, name, "Grid", string(domain.CategoryExpense), "")); err != nil {
			return err
		}
	}
	return nil
}

// categoryForm builds a form with the scenario's unique variant of name and
// the already generated name of parent. Blank names stay blank.
func categoryForm(w *world.World, name, icon, typ, parent string) domain.CategoryForm {
	form := domain.CategoryForm{
		Icon: icon,
		Type: domain.CategoryType(strings.ToUpper(strings.TrimSpace(typ))),
	}
	if strings.TrimSpace(name) != "" {
		form.Name = w.UniqueNameFor(name)
	}
	if parent != "" {
		form.Parent = w.ResolveName(parent)
	}
	return form
}

func createCategory(ctx context.Context, form domain.CategoryForm) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	w.RecordResult(usecase.NewCreateCategory(ui, w.Ports.CategoryAPI, w.Deps()).Execute(ctx, form))
	return nil
}

func iCreateACategory(ctx context.Context, name, icon, typ string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	return createCategory(ctx, categoryForm(w, name, icon, typ, ""))
}

func iCreateAChildCategory(ctx context.Context, name, icon, typ, parent string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	return createCategory(ctx, categoryForm(w, name, icon, typ, parent))
}

func iCreateACategoryWithoutAName(ctx context.Context) error {
	return createCategory(ctx, domain.CategoryForm{Icon: "Grid", Type: domain.CategoryExpense})
}

func iCreateACategoryWithALongName(ctx context.Context) error {
	name := strings.Repeat("x", domain.MaxCategoryNameLength+1)
	return createCategory(ctx, domain.CategoryForm{Name: name, Icon: "Grid", Type: domain.CategoryExpense})
}

func iCreateAnotherCategory(ctx context.Context, name, icon, typ string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	form := domain.CategoryForm{
		Name: w.ResolveName(name),
		Icon: icon,
		Type: domain.CategoryType(strings.ToUpper(strings.TrimSpace(typ))),
	}
	w.RecordResult(usecase.NewCreateCategory(ui, w.Ports.CategoryAPI, w.Deps()).ExecuteDuplicate(ctx, form))
	return nil
}

func iUpdateCategoryParent(ctx context.Context, name, parent string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	uc := usecase.NewUpdateCategoryParent(ui, w.Ports.CategoryAPI, w.Deps())
	w.RecordResult(uc.Execute(ctx, w.ResolveName(name), w.ResolveName(parent)))
	return nil
}

func iDeleteTheCategory(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	w.RecordResult(usecase.NewDeleteCategory(ui, w.Deps()).Execute(ctx, w.ResolveName(name)))
	return nil
}

func iListAllCategories(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	if err := ui.NavigateToCategoryPage(ctx); err != nil {
		return err
	}
	names, err := ui.ListCategories(ctx)
	if err != nil {
		return err
	}
	w.Set(listedCategoriesKey, names)
	return nil
}

func theCategoryShouldBeCreated(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if !w.LastResult.IsSuccess() {
		return fmt.Errorf("category %q was not created: %s", name, w.LastResult)
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	created, err := ui.IsCategoryCreated(ctx, w.ResolveName(name))
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("category %q is not shown", w.ResolveName(name))
	}
	return nil
}

func theCategoryShouldBeAChildOf(ctx context.Context, child, parent string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if !w.LastResult.IsSuccess() {
		return fmt.Errorf("last operation failed: %s", w.LastResult)
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	nested, err := ui.IsCategoryChildOf(ctx, w.ResolveName(child), w.ResolveName(parent))
	if err != nil {
		return err
	}
	if !nested {
		return fmt.Errorf("category %q is not shown under %q", w.ResolveName(child), w.ResolveName(parent))
	}
	return nil
}

func theOperationShouldFailWith(ctx context.Context, message string) error {
	return theErrorMessageShouldContain(ctx, message)
}

func theCategoryShouldNotBeCreated(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.IsSuccess() {
		return fmt.Errorf("expected the category to be refused, got %s", w.LastResult)
	}
	return nil
}

func theCategoryShouldNotAppear(ctx context.Context, name string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	created, err := ui.IsCategoryCreated(ctx, w.ResolveName(name))
	if err != nil {
		return err
	}
	if created {
		return fmt.Errorf("category %q is still shown", w.ResolveName(name))
	}
	return nil
}

// iShouldSeeAnErrorMessage accepts the message from the last result or, for
// messages only the page shows, from the page itself.
func iShouldSeeAnErrorMessage(ctx context.Context, message string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if !w.LastResult.IsSuccess() && containsFold(w.LastResult.Message, message) {
		return nil
	}
	ui, err := categoryUI(w)
	if err != nil {
		return err
	}
	visible, err := ui.IsErrorMessageVisible(ctx, message)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("error message %q is not shown (last result: %s)", message, w.LastResult)
	}
	return nil
}

func iShouldSeeInTheCategoryList(ctx context.Context, a, b, c string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	v, _ := w.Get(listedCategoriesKey)
	listed, _ := v.([]string)
	for _, name := range []string{a, b, c} {
		want := w.ResolveName(name)
		found := false
		for _, l := range listed {
			if strings.EqualFold(l, want) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("category %q is not in the list %v", want, listed)
		}
	}
	return nil
}
