package vault

// Action identifies what an operation did to a variable set. The set of
// values is closed: mutation actions appear in both the history and audit
// logs, read actions only in the audit log.
type Action string

// Mutation actions.
const (
	ActionAdd           Action = "add"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionBulkReplace   Action = "bulk_replace"
	ActionRollback      Action = "rollback"
	ActionTemplateApply Action = "template_apply"
)

// Read actions.
const (
	ActionRead        Action = "read"
	ActionList        Action = "list"
	ActionHistoryRead Action = "history_read"
	ActionDiffRead    Action = "diff_read"
	ActionExport      Action = "export"
	ActionAuditExport Action = "audit_export"
)

// Maintenance actions. These touch store infrastructure rather than
// variable values and never appear in the history log.
const (
	ActionBackup         Action = "backup"
	ActionRestore        Action = "restore"
	ActionHistoryCompact Action = "history_compact"
)

var knownActions = map[Action]bool{
	ActionAdd:            true,
	ActionUpdate:         true,
	ActionDelete:         true,
	ActionBulkReplace:    true,
	ActionRollback:       true,
	ActionTemplateApply:  true,
	ActionRead:           true,
	ActionList:           true,
	ActionHistoryRead:    true,
	ActionDiffRead:       true,
	ActionExport:         true,
	ActionAuditExport:    true,
	ActionBackup:         true,
	ActionRestore:        true,
	ActionHistoryCompact: true,
}

// IsMutation reports whether the action changes stored state.
func (a Action) IsMutation() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete, ActionBulkReplace, ActionRollback, ActionTemplateApply:
		return true
	}
	return false
}

// KnownAction reports whether s is one of the closed action values.
func KnownAction(s string) bool {
	return knownActions[Action(s)]
}
