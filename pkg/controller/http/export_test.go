package http

// Export the private function for testing
var VerifySlackSignature = verifySlackSignature

var ParseSlackTimestamp = parseSlackTimestamp
