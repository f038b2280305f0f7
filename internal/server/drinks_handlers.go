package server

import (
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type drinkRequestPayload struct {
	Title  *string        `json:"title"`
	Recipe *drinks.Recipe `json:"recipe"`
}

type drinksResponsePayload[T any] struct {
	Success bool `json:"success"`
	Drinks  []T  `json:"drinks"`
}

type deleteResponsePayload struct {
	Success bool `json:"success"`
	Delete  uint `json:"delete"`
}

func (h *httpHandler) handleListDrinks(c *gin.Context) {
	stored, err := h.drinks.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list drinks", zap.Error(err))
		abortWithStatus(c, http.StatusInternalServerError)
		return
	}

	response := drinksResponsePayload[drinks.ShortDrink]{Success: true, Drinks: make([]drinks.ShortDrink, 0, len(stored))}
	for _, drink := range stored {
		response.Drinks = append(response.Drinks, drink.Short())
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListDrinkDetails(c *gin.Context) {
	stored, err := h.drinks.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list drink details", zap.Error(err))
		abortWithStatus(c, http.StatusInternalServerError)
		return
	}

	response := drinksResponsePayload[drinks.LongDrink]{Success: true, Drinks: make([]drinks.LongDrink, 0, len(stored))}
	for _, drink := range stored {
		response.Drinks = append(response.Drinks, drink.Long())
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreateDrink(c *gin.Context) {
	var request drinkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithStatus(c, http.StatusBadRequest)
		return
	}

	title := ""
	if request.Title != nil {
		title = *request.Title
	}
	var recipe drinks.Recipe
	if request.Recipe != nil {
		recipe = *request.Recipe
	}

	created, err := h.drinks.Insert(c.Request.Context(), title, recipe)
	if err != nil {
		h.abortWithStoreError(c, "failed to create drink", err)
		return
	}

	h.logger.Info("drink created",
		zap.Uint("drink_id", created.ID),
		zap.String("subject", claimsFromContext(c).Subject))
	c.JSON(http.StatusOK, drinksResponsePayload[drinks.LongDrink]{Success: true, Drinks: []drinks.LongDrink{created.Long()}})
}

func (h *httpHandler) handleUpdateDrink(c *gin.Context) {
	id, ok := parseDrinkID(c)
	if !ok {
		abortWithStatus(c, http.StatusNotFound)
		return
	}

	drink, err := h.drinks.FindByID(c.Request.Context(), id)
	if err != nil {
		h.abortWithStoreError(c, "failed to load drink", err)
		return
	}

	var request drinkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithStatus(c, http.StatusBadRequest)
		return
	}
	drink.Apply(drinks.Patch{Title: request.Title, Recipe: request.Recipe})

	updated, err := h.drinks.Update(c.Request.Context(), drink)
	if err != nil {
		h.abortWithStoreError(c, "failed to update drink", err)
		return
	}

	h.logger.Info("drink updated",
		zap.Uint("drink_id", updated.ID),
		zap.String("subject", claimsFromContext(c).Subject))
	c.JSON(http.StatusOK, drinksResponsePayload[drinks.LongDrink]{Success: true, Drinks: []drinks.LongDrink{updated.Long()}})
}

func (h *httpHandler) handleDeleteDrink(c *gin.Context) {
	id, ok := parseDrinkID(c)
	if !ok {
		abortWithStatus(c, http.StatusNotFound)
		return
	}

	if _, err := h.drinks.FindByID(c.Request.Context(), id); err != nil {
		h.abortWithStoreError(c, "failed to load drink", err)
		return
	}
	if err := h.drinks.Delete(c.Request.Context(), id); err != nil {
		h.abortWithStoreError(c, "failed to delete drink", err)
		return
	}

	h.logger.Info("drink deleted",
		zap.Uint("drink_id", id),
		zap.String("subject", claimsFromContext(c).Subject))
	c.JSON(http.StatusOK, deleteResponsePayload{Success: true, Delete: id})
}

// parseDrinkID reads the :id path segment. Non-numeric ids cannot name a
// drink, so callers answer them with 404.
func parseDrinkID(c *gin.Context) (uint, bool) {
	value, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}
