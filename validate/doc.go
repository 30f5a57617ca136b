// Package validate provides declarative per-field rule chains producing
// aggregated, field-keyed errors.
//
// A Validator maps field names to ordered rule lists:
//
//	v := validate.New().
//	    Add("name", validate.Required(), validate.NotEmpty()).
//	    Add("age", validate.Positive(), validate.Max(150)).
//	    Add("email", validate.Email()).
//	    SetMessage("email", "please enter a valid address")
//
//	if err := v.Validate(ctx, data); err != nil {
//	    verr, _ := validate.AsErrors(err)
//	    verr.Get("name") // every failed message for name, in rule order
//	}
//
// All rules of all fields are evaluated concurrently and every failure is
// reported, not only the first failure per field. A rule that returns an
// error or panics counts as failed and contributes the error text as its
// message. Rules other than Required pass when the field is absent or nil,
// so optional fields only need Required when they must be present.
//
// Custom rules implement Rule, or wrap a function with RuleFunc or Custom:
//
//	unique := validate.Custom(func(ctx context.Context, v any, _ map[string]any) (bool, error) {
//	    n, err := users.Query().Where("email", "=", v).Count(ctx)
//	    return n == 0, err
//	}, "has already been taken")
package validate
