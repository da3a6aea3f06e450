package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openlims/sample-storage/internal/service"
)

// StorageHandler serves the sample custody endpoints: registration,
// assignment, movement, disposal and the read views.
type StorageHandler struct {
	Storage *service.StorageService
}

// NewStorageHandler constructs a StorageHandler.
func NewStorageHandler(storage *service.StorageService) *StorageHandler {
	if storage == nil {
		panic("nil service passed to NewStorageHandler")
	}
	return &StorageHandler{Storage: storage}
}

// List handles GET /storage/sample-items with status, location and
// search filters.
func (h *StorageHandler) List(c echo.Context) error {
	in := service.ListSampleItemsInput{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	}
	if v := c.QueryParam("location"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid location id"})
		}
		in.LocationID = &id
	}
	views, err := h.Storage.ListSampleItems(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, itemListJSON(views))
}

// Search handles GET /storage/sample-items/search?q=.
func (h *StorageHandler) Search(c echo.Context) error {
	views, err := h.Storage.SearchSampleItems(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, itemListJSON(views))
}

// Get handles GET /storage/sample-items/:id, returning the item with
// its resolved current location.
func (h *StorageHandler) Get(c echo.Context) error {
	view, err := h.Storage.ItemLocation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	resp := echo.Map{
		"id":           view.Item.ID,
		"sampleId":     view.Item.AccessionNumber,
		"specimenType": view.Item.SpecimenType,
		"status":       view.Item.Status,
	}
	if view.AssignmentID != 0 {
		resp["assignmentId"] = view.AssignmentID
		resp["locationId"] = view.LocationID
		resp["hierarchicalPath"] = view.HierarchicalPath
		resp["segments"] = view.Segments
		resp["assignedDate"] = view.AssignedDate
		if view.PositionCoordinate != "" {
			resp["positionCoordinate"] = view.PositionCoordinate
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Movements handles GET /storage/sample-items/:id/movements, newest
// first.
func (h *StorageHandler) Movements(c echo.Context) error {
	views, err := h.Storage.Movements(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]echo.Map, 0, len(views))
	for _, v := range views {
		m := echo.Map{"id": v.ID, "movedDate": v.MovedDate}
		if v.From != "" {
			m["from"] = v.From
		}
		if v.To != "" {
			m["to"] = v.To
		}
		if v.Reason != "" {
			m["reason"] = v.Reason
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, out)
}

// Register handles POST /storage/sample-items.
func (h *StorageHandler) Register(c echo.Context) error {
	var body service.RegisterSampleItemInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	item, err := h.Storage.RegisterSampleItem(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"sampleItemId": item.ID,
		"sampleId":     item.AccessionNumber,
		"status":       item.Status,
	})
}

// Assign handles POST /storage/sample-items/assign.
func (h *StorageHandler) Assign(c echo.Context) error {
	var body service.AssignInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	res, err := h.Storage.Assign(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	resp := assignJSON(res)
	return c.JSON(http.StatusCreated, resp)
}

// Move handles POST /storage/sample-items/move.
func (h *StorageHandler) Move(c echo.Context) error {
	var body service.MoveInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	res, err := h.Storage.Move(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"movementId":       res.MovementID,
		"previousLocation": res.PreviousLocation,
		"newLocation":      res.NewLocation,
		"movedDate":        res.MovedDate,
	})
}

// Patch handles PATCH /storage/sample-items/:id, updating the active
// assignment's coordinate or notes.  The response mirrors Assign.
func (h *StorageHandler) Patch(c echo.Context) error {
	var body service.UpdateAssignmentInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	res, err := h.Storage.UpdateAssignment(c.Request().Context(), c.Param("id"), body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, assignJSON(res))
}

// Dispose handles POST /storage/sample-items/dispose.
func (h *StorageHandler) Dispose(c echo.Context) error {
	var body service.DisposeInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	res, err := h.Storage.Dispose(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	resp := echo.Map{
		"disposalId":   res.DisposalID,
		"disposedDate": res.DisposedDate,
	}
	if res.PreviousLocation != "" {
		resp["previousLocation"] = res.PreviousLocation
	}
	return c.JSON(http.StatusOK, resp)
}

// Metrics handles GET /storage/metrics, the domain counts computed
// from committed state at call time.
func (h *StorageHandler) Metrics(c echo.Context) error {
	snap, err := h.Storage.Metrics(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stored":           snap.Stored,
		"disposed":         snap.Disposed,
		"unassigned":       snap.Unassigned,
		"totalSampleItems": snap.TotalSampleItems,
		"locations": echo.Map{
			"rooms":   snap.Locations.Rooms,
			"devices": snap.Locations.Devices,
			"shelves": snap.Locations.Shelves,
			"racks":   snap.Locations.Racks,
			"boxes":   snap.Locations.Boxes,
		},
	})
}

func assignJSON(res *service.AssignResult) echo.Map {
	m := echo.Map{
		"assignmentId":     res.AssignmentID,
		"hierarchicalPath": res.HierarchicalPath,
		"segments":         res.Segments,
		"assignedDate":     res.AssignedDate,
	}
	if res.ShelfCapacityWarning != "" {
		m["shelfCapacityWarning"] = res.ShelfCapacityWarning
	}
	return m
}

func itemListJSON(views []service.SampleItemView) []echo.Map {
	out := make([]echo.Map, 0, len(views))
	for _, v := range views {
		m := echo.Map{
			"id":       v.ID,
			"sampleId": v.AccessionNumber,
			"status":   v.Status,
		}
		if v.SpecimenType != "" {
			m["specimenType"] = v.SpecimenType
		}
		if v.Location != "" {
			m["location"] = v.Location
			m["segments"] = v.Segments
		}
		out = append(out, m)
	}
	return out
}
