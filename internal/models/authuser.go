package models

// AuthRecipeUser is a hydrated registry row: the cross-recipe identity plus
// the recipe-specific record. Exactly one of the recipe fields is set,
// matching RecipeID.
type AuthRecipeUser struct {
	ID         string
	RecipeID   RecipeID
	TimeJoined int64

	EmailPassword *EmailPasswordUser
	ThirdParty    *ThirdPartyUser
	Passwordless  *PasswordlessUser
}
