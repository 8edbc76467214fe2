package models

// Resource is a countable tenant-scoped record type.
type Resource string

const (
	ResourcePatient     Resource = "patient"
	ResourceUser        Resource = "user"
	ResourceAppointment Resource = "appointment"
)

// IsMonthly reports whether usage of the resource resets each calendar month.
// Users are a lifetime total.
func (r Resource) IsMonthly() bool {
	return r == ResourcePatient || r == ResourceAppointment
}

// Action is what the caller intends to do with a resource.
type Action string

const (
	ActionCreate Action = "create"
)

// Feature is a boolean plan capability.
type Feature string

const (
	FeatureCustomBranding     Feature = "customBranding"
	FeatureAPIAccess          Feature = "apiAccess"
	FeaturePrioritySupport    Feature = "prioritySupport"
	FeatureAdvancedReports    Feature = "advancedReports"
	FeatureSMSNotifications   Feature = "smsNotifications"
	FeatureEmailNotifications Feature = "emailNotifications"
	FeatureDataBackup         Feature = "dataBackup"
)

// KnownFeatures lists every feature key a plan can carry.
var KnownFeatures = []Feature{
	FeatureCustomBranding,
	FeatureAPIAccess,
	FeaturePrioritySupport,
	FeatureAdvancedReports,
	FeatureSMSNotifications,
	FeatureEmailNotifications,
	FeatureDataBackup,
}
