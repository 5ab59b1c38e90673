package classifier

var BuildResponseSchema = buildResponseSchema
