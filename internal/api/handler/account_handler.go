package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
)

// AccountHandler exposes account management over HTTP.
type AccountHandler struct {
	accounts ports.AccountService
}

func NewAccountHandler(accounts ports.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// List returns every account.
//
// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Success      200  {array}   domain.AccountView
// @Failure      500  {object}  errorBody
// @Router       /api/users [get]
func (h *AccountHandler) List(c echo.Context) error {
	views, err := h.accounts.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

// Get returns a single account.
//
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  domain.AccountView
// @Failure      404  {object}  errorBody
// @Router       /api/users/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	view, err := h.accounts.GetAccount(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Create registers a new account.
//
// @Summary      Create an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        body  body      ports.CreateAccountInput  true  "Account details"
// @Success      201   {object}  domain.AccountView
// @Header       201   {string}  Location  "/api/users/{id}"
// @Failure      400   {object}  errorBody
// @Router       /api/users [post]
func (h *AccountHandler) Create(c echo.Context) error {
	var in ports.CreateAccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	view, err := h.accounts.CreateAccount(c.Request().Context(), in)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/users/"+strconv.FormatInt(view.ID, 10))
	return c.JSON(http.StatusCreated, view)
}

// Update applies a partial update to an account.
//
// @Summary      Update an account
// @Tags         accounts
// @Accept       json
// @Param        id    path      int                       true  "Account ID"
// @Param        body  body      ports.UpdateAccountInput  true  "Fields to change"
// @Success      204
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /api/users/{id} [put]
func (h *AccountHandler) Update(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	var in ports.UpdateAccountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.accounts.UpdateAccount(c.Request().Context(), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes an account.
//
// @Summary      Delete an account
// @Tags         accounts
// @Param        id   path      int  true  "Account ID"
// @Success      204
// @Failure      404  {object}  errorBody
// @Router       /api/users/{id} [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	if err := h.accounts.DeleteAccount(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// accountID parses the :id path parameter. An id that is not a number cannot
// name an account, so it is reported as not found.
func accountID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, domain.ErrAccountNotFound
	}
	return id, nil
}

// errorBody documents the error envelope for swag.
type errorBody struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}
