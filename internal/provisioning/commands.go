package provisioning

// ProvisionedMarker is written by remote provisioning once it completed.
const ProvisionedMarker = "/var/mdbci/provisioned"

// Remote commands shared by the orchestrators and executors.
const (
	ReachabilityProbeCommand = `echo "connected"`
	ProvisionedCheckCommand  = "test -e " + ProvisionedMarker + " && printf PROVISIONED || printf NOT"
)
