package enum

// ── Order lifecycle (enum constrained in DB) ──

const (
	OrderStatusPending             = "PENDING"
	OrderStatusPreparing           = "PREPARING"
	OrderStatusReady               = "READY"
	OrderStatusCompleted           = "COMPLETED"
	OrderStatusCancellationPending = "CANCELLATION_PENDING"
	OrderStatusCancelled           = "CANCELLED"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
)

// ── Roles (enum constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleStaff   = "STAFF"
)
