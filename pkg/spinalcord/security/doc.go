// Package security holds the safe-mode controller and the cells that drive it.
//
// Safe mode is a process-wide one-way latch. Only the quarantine Cell can
// trip it, after which it stays set until an authorized operator calls
// Controller.Reset. While it is set, Allow refuses risky operations.
//
//	ctrl := security.NewController(security.WithAuthorizer(security.NewTokenAuthorizer(token)))
//	cell, intake, notes := security.NewCell(ctrl)
//	cell.Start(ctx)
//
//	_ = intake.Report(ctx, "critical_module")
//	n, _ := notes.Recv(ctx) // n.Description == "module critical_module quarantined"
package security
