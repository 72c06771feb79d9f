package models

// UserProfilesTable is the DynamoDB table name for user profiles
const UserProfilesTable = "UserProfiles"

// ProfileKeyAttr is the partition key of the profiles table
const ProfileKeyAttr = "userhandle"
