package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/service"
)

// kinds maps the plural route segment to the hierarchy level it
// manages.  Positions are addressed through assignment coordinates and
// have no CRUD surface of their own.
var kinds = map[string]hierarchy.LocationType{
	"rooms":   hierarchy.TypeRoom,
	"devices": hierarchy.TypeDevice,
	"shelves": hierarchy.TypeShelf,
	"racks":   hierarchy.TypeRack,
	"boxes":   hierarchy.TypeBox,
}

// LocationHandler serves the location tree endpoints.  The :kind route
// parameter selects the hierarchy level.
type LocationHandler struct {
	Locations *service.LocationService
}

// NewLocationHandler constructs a LocationHandler.
func NewLocationHandler(locations *service.LocationService) *LocationHandler {
	if locations == nil {
		panic("nil service passed to NewLocationHandler")
	}
	return &LocationHandler{Locations: locations}
}

func routeKind(c echo.Context) (hierarchy.LocationType, bool) {
	typ, ok := kinds[c.Param("kind")]
	if !ok {
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "unknown location kind"})
		return "", false
	}
	return typ, true
}

// List handles GET /storage/:kind.  Filters: status, parent, room,
// device (ancestor scoping) and search.
func (h *LocationHandler) List(c echo.Context) error {
	typ, ok := routeKind(c)
	if !ok {
		return nil
	}
	in := service.ListLocationsInput{
		Type:            typ,
		IncludeInactive: strings.EqualFold(c.QueryParam("status"), "all") || strings.EqualFold(c.QueryParam("status"), "inactive"),
		Search:          c.QueryParam("search"),
	}
	if v := c.QueryParam("parent"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parent id"})
		}
		in.ParentID = &id
	}
	// Ancestor scoping, e.g. /storage/devices?room=3 or /storage/racks?device=7.
	for _, key := range []string{"room", "device", "shelf", "rack"} {
		if v := c.QueryParam(key); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + key + " id"})
			}
			in.AncestorID = &id
			break
		}
	}
	nodes, err := h.Locations.List(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, locationListJSON(nodes))
}

// Get handles GET /storage/:kind/:id.  A node reached through the
// wrong kind segment is a 404, not a different view of the same row.
func (h *LocationHandler) Get(c echo.Context) error {
	typ, ok := routeKind(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	node, err := h.Locations.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if node.Type != typ {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
	}
	return c.JSON(http.StatusOK, locationJSON(node))
}

// Create handles POST /storage/:kind.
func (h *LocationHandler) Create(c echo.Context) error {
	typ, ok := routeKind(c)
	if !ok {
		return nil
	}
	var body service.CreateLocationInput
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	// The route segment, not the body, decides the level being created.
	body.Type = string(typ)
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	node, err := h.Locations.Create(c.Request().Context(), body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, locationJSON(node))
}

// Update handles PUT /storage/:kind/:id.
func (h *LocationHandler) Update(c echo.Context) error {
	if _, ok := routeKind(c); !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	var body service.UpdateLocationInput
	if !bindAndValidate(c, &body) {
		return nil
	}
	node, err := h.Locations.Update(c.Request().Context(), id, body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, locationJSON(node))
}

// Delete handles DELETE /storage/:kind/:id.  Returns 409 when the
// subtree still holds active children or assignments.
func (h *LocationHandler) Delete(c echo.Context) error {
	if _, ok := routeKind(c); !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	if err := h.Locations.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedId": id})
}

// CanDelete handles GET /storage/:kind/:id/can-delete, the dry-run
// counterpart of Delete.
func (h *LocationHandler) CanDelete(c echo.Context) error {
	if _, ok := routeKind(c); !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return nil
	}
	allowed, reason, err := h.Locations.CanDelete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	resp := echo.Map{"canDelete": allowed}
	if reason != "" {
		resp["reason"] = reason
	}
	return c.JSON(http.StatusOK, resp)
}

// Search handles GET /storage/locations/search?q=&type=.
func (h *LocationHandler) Search(c echo.Context) error {
	var typ hierarchy.LocationType
	if v := c.QueryParam("type"); v != "" {
		parsed, ok := hierarchy.Parse(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown location type"})
		}
		typ = parsed
	}
	nodes, err := h.Locations.Search(c.Request().Context(), c.QueryParam("q"), typ)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, locationListJSON(nodes))
}

func locationJSON(n *model.LocationNode) echo.Map {
	m := echo.Map{
		"id":        n.ID,
		"type":      n.Type,
		"code":      n.Code,
		"name":      n.Name,
		"active":    n.Active,
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
	}
	if n.ParentID != nil {
		m["parentId"] = *n.ParentID
	}
	if n.Capacity != nil {
		m["capacity"] = *n.Capacity
	}
	return m
}

func locationListJSON(nodes []*model.LocationNode) []echo.Map {
	out := make([]echo.Map, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, locationJSON(n))
	}
	return out
}
