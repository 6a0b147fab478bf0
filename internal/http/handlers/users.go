package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/resource"
)

// UsersHandler exposes the identity resource through the generic operations.
type UsersHandler struct {
	users *resource.Descriptor
}

func NewUsersHandler(users *resource.Descriptor) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) List() gin.HandlerFunc { return Handle(resource.List(h.users)) }

func (h *UsersHandler) Trash() gin.HandlerFunc { return Handle(resource.Trash(h.users)) }

func (h *UsersHandler) Get() gin.HandlerFunc { return Handle(resource.GetOne(h.users)) }

func (h *UsersHandler) Me() gin.HandlerFunc { return Handle(resource.GetOne(h.users), Self()) }

// UpdateMe refuses password, role and machine changes before the update runs.
func (h *UsersHandler) UpdateMe() gin.HandlerFunc {
	return Handle(resource.Update(h.users), Self(), Guard(user.RejectSelfServiceFields))
}

func (h *UsersHandler) Create() gin.HandlerFunc { return Handle(resource.Create(h.users)) }

func (h *UsersHandler) Update() gin.HandlerFunc {
	return Handle(resource.Update(h.users), Guard(user.RejectPasswordUpdate))
}

// Delete soft-deletes; the document stays recoverable through Restore.
func (h *UsersHandler) Delete() gin.HandlerFunc { return Handle(resource.SoftDelete(h.users)) }

func (h *UsersHandler) Restore() gin.HandlerFunc { return Handle(resource.Restore(h.users)) }
