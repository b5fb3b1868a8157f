package http

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"antspend/internal/auth"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/services"
	"antspend/internal/storage"
)

// expenseForm is the parsed and validated create/update payload.
type expenseForm struct {
	categoryID  int64
	amount      core.Money
	date        core.Date
	description string
	location    string
}

// parseExpenseForm validates the submitted fields, collecting messages per
// field the same way the filter service does.
func parseExpenseForm(r *http.Request, now time.Time) (expenseForm, services.FieldErrors) {
	errs := services.FieldErrors{}
	var f expenseForm

	if id, ok := parseID(r.Form.Get("category")); ok {
		f.categoryID = id
	} else {
		errs["category"] = "Choose a category"
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(r.Form.Get("amount")))
	if err != nil || cents <= 0 {
		errs["amount"] = "Amount must be a positive number"
	} else {
		f.amount = core.Money{Cents: cents}
	}

	rawDate := sanitizeInput(r.Form.Get("date"))
	if rawDate == "" {
		f.date = core.Date{Time: now}
	} else if d, err := core.ParseDate(rawDate); err != nil {
		errs["date"] = "Invalid date, expected YYYY-MM-DD"
	} else {
		f.date = d
	}

	f.description = sanitizeInput(r.Form.Get("description"))
	if len(f.description) > 255 {
		errs["description"] = "Description must be 255 characters or fewer"
	}
	f.location = sanitizeInput(r.Form.Get("location"))

	return f, errs
}

// checkCategory flags the category field when the submitted id does not
// exist. The schema's foreign key would also reject it, but checking here
// turns it into a field error instead of a 500.
func (s *Server) checkCategory(r *http.Request, id int64, errs services.FieldErrors) error {
	if id <= 0 {
		return nil // already flagged by the parser
	}
	_, err := s.store.GetCategory(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		errs["category"] = "Unknown category"
		return nil
	}
	return err
}

// handleExpenses serves the list page on GET and creates an expense on POST.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleExpensesPage(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleExpensesPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
	}

	data := struct {
		Username   string
		Categories []core.Category
	}{
		Username:   user.Username,
		Categories: categories,
	}
	s.render(w, r, "expenses.html", data)
}

// handleExpenseList renders the filtered expense rows. Invalid filters come
// back as a 200 fragment showing field errors, keeping the HTMX swap alive.
func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	nf, errs := services.NormalizeFilter(time.Now(), filterParamsFromQuery(r))
	if len(errs) > 0 {
		s.render(w, r, "expense_list.html", struct {
			Expenses []core.ExpenseDetail
			Errors   services.FieldErrors
			Label    string
		}{Errors: errs})
		return
	}

	expenses, err := s.store.ListExpenses(r.Context(), user.ID, nf.Filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List expenses failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		InternalServerError("Failed to load expenses").Write(w)
		return
	}

	s.render(w, r, "expense_list.html", struct {
		Expenses []core.ExpenseDetail
		Errors   services.FieldErrors
		Label    string
	}{Expenses: expenses, Label: nf.Label})
}

func (s *Server) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
		InternalServerError("Failed to load categories").Write(w)
		return
	}

	data := struct {
		Categories []core.Category
		Today      string
	}{
		Categories: categories,
		Today:      core.Date{Time: time.Now()}.String(),
	}
	s.render(w, r, "expense_form.html", data)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	now := time.Now()

	form, errs := parseExpenseForm(r, now)
	if err := s.checkCategory(r, form.categoryID, errs); err != nil {
		s.logger.ErrorContext(r.Context(), "Get category failed",
			log.FieldError, err, log.FieldCategoryID, form.categoryID)
		InternalServerError("Failed to verify category").Write(w)
		return
	}
	if len(errs) > 0 {
		s.renderFormErrors(w, r, errs)
		return
	}

	expense := core.Expense{
		UserID:      user.ID,
		CategoryID:  form.categoryID,
		Amount:      form.amount,
		Date:        form.date,
		Description: form.description,
		Location:    form.location,
	}
	if err := expense.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateExpense(r.Context(), expense)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Create expense failed",
			log.FieldError, err, log.FieldUserID, user.ID,
			log.FieldAmountCents, expense.Amount.Cents)
		InternalServerError("Failed to save expense").Write(w)
		return
	}

	s.afterExpenseMutation(r, user.ID, now)
	s.logger.InfoContext(r.Context(), "Expense created",
		log.FieldUserID, user.ID, log.FieldExpenseID, created.ID,
		log.FieldAmountCents, created.Amount.Cents)

	NewHTMXResponse().
		TriggerExpenseCreated(created.ID).
		TriggerPageRefresh().
		TriggerFormReset().
		TriggerSuccessNotification("Expense saved").
		BodyHTML(`<div class="success">Saved ` + template.HTMLEscapeString(created.Description) +
			` — €` + template.HTMLEscapeString(created.Amount.String()) + `</div>`).
		Write(w)
}

func (s *Server) handleExpenseEdit(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		BadRequestError("Missing expense id").Write(w)
		return
	}

	expense, err := s.store.GetExpense(r.Context(), id, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("Expense not found").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Get expense failed",
			log.FieldError, err, log.FieldExpenseID, id)
		InternalServerError("Failed to load expense").Write(w)
		return
	}

	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
	}

	data := struct {
		Expense    core.Expense
		Amount     string
		Date       string
		Categories []core.Category
	}{
		Expense:    expense,
		Amount:     expense.Amount.String(),
		Date:       expense.Date.String(),
		Categories: categories,
	}
	s.render(w, r, "expense_edit.html", data)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	now := time.Now()

	id, ok := parseID(r.Form.Get("id"))
	if !ok {
		BadRequestError("Missing expense id").Write(w)
		return
	}

	form, errs := parseExpenseForm(r, now)
	if err := s.checkCategory(r, form.categoryID, errs); err != nil {
		s.logger.ErrorContext(r.Context(), "Get category failed",
			log.FieldError, err, log.FieldCategoryID, form.categoryID)
		InternalServerError("Failed to verify category").Write(w)
		return
	}
	if len(errs) > 0 {
		s.renderFormErrors(w, r, errs)
		return
	}

	expense := core.Expense{
		ID:          id,
		UserID:      user.ID,
		CategoryID:  form.categoryID,
		Amount:      form.amount,
		Date:        form.date,
		Description: form.description,
		Location:    form.location,
	}
	if err := expense.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	err := s.store.UpdateExpense(r.Context(), expense)
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("Expense not found").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Update expense failed",
			log.FieldError, err, log.FieldExpenseID, id)
		InternalServerError("Failed to update expense").Write(w)
		return
	}

	s.afterExpenseMutation(r, user.ID, now)
	s.logger.InfoContext(r.Context(), "Expense updated",
		log.FieldUserID, user.ID, log.FieldExpenseID, id)

	NewHTMXResponse().
		TriggerExpenseUpdated(id).
		TriggerPageRefresh().
		TriggerSuccessNotification("Expense updated").
		BodyHTML(`<div class="success">Expense updated</div>`).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	id, ok := parseID(r.Form.Get("id"))
	if !ok {
		id, ok = parseID(r.URL.Query().Get("id"))
	}
	if !ok {
		BadRequestError("Missing expense id").Write(w)
		return
	}

	err := s.store.DeleteExpense(r.Context(), id, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("Expense not found").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Delete expense failed",
			log.FieldError, err, log.FieldExpenseID, id)
		InternalServerError("Failed to delete expense").Write(w)
		return
	}

	s.aggregation.Invalidate(user.ID)
	s.logger.InfoContext(r.Context(), "Expense deleted",
		log.FieldUserID, user.ID, log.FieldExpenseID, id)

	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerPageRefresh().
		TriggerSuccessNotification("Expense deleted").
		BodyHTML(`<div class="success">Expense deleted</div>`).
		Write(w)
}

// afterExpenseMutation drops the user's cached dashboards and runs the
// budget alert check. Neither can fail the request.
func (s *Server) afterExpenseMutation(r *http.Request, userID int64, now time.Time) {
	s.aggregation.Invalidate(userID)
	if s.alerts != nil {
		s.alerts.CheckAndNotify(r.Context(), userID, now)
	}
}

// renderFormErrors answers with a fragment listing the field problems.
// The status stays 200 so stock htmx swaps the fragment into the form's
// target instead of dropping the response.
func (s *Server) renderFormErrors(w http.ResponseWriter, r *http.Request, errs services.FieldErrors) {
	body := `<div class="error"><ul>`
	for field, msg := range errs {
		body += `<li data-field="` + template.HTMLEscapeString(field) + `">` +
			template.HTMLEscapeString(msg) + `</li>`
	}
	body += `</ul></div>`

	NewHTMXResponse().
		BodyHTML(body).
		Write(w)
}
