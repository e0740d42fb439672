package shared

// Capability names a permission a business grants to a retailer.
type Capability string

// CapabilityInputs lets a retailer see and bid on input requests.
const CapabilityInputs Capability = "inputs"
