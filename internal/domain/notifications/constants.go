package notifications

const (
	TypeAmendmentApproved = "amendment_approved"
	TypeAmendmentDeclined = "amendment_declined"
	TypeDeputySyncFailed  = "deputy_sync_failed"
	TypePayslipApproved   = "payslip_approved"
	TypePayslipExported   = "payslip_exported"
)
