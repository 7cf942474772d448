// Package mongosource publishes MongoDB documents as records.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "school")
//	find := mongosource.Collection(db.Collection("students"), bson.M{"active": true})
//	factory := mongosource.Factory("StudentPersonal", find,
//		mongosource.WithFields(map[string]string{
//			"name.first": "PersonInfo/Name/GivenName",
//			"name.last":  "PersonInfo/Name/FamilyName",
//		}),
//	)
//
// Documents are flattened to dotted paths. Scalar arrays are joined with commas
// and arrays of documents are left out.
package mongosource
