package access

// DefaultRoutes declares every view of the portal.
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/", Category: Root},
		{Pattern: LoginPath, Category: GuestOnly},
		{Pattern: "/logout", Category: Public},
		{Pattern: "/about", Category: Public},

		{Pattern: "/profile", Category: Authenticated},
		{Pattern: "/profile/**", Category: Authenticated},
		{Pattern: "/profiles/*", Category: Authenticated},

		{Pattern: "/skills/mine", Category: EmployeeOnly},

		{Pattern: "/validation-inbox", Category: AdminOnly},
		{Pattern: "/validation-inbox/**", Category: AdminOnly},
		{Pattern: "/admin", Category: AdminOnly},
		{Pattern: AdminLanding, Category: AdminOnly},
		{Pattern: "/admin/**", Category: AdminOnly},
	}
}

// DefaultPolicy is the compiled form of DefaultRoutes.
func DefaultPolicy() *Policy {
	return MustPolicy(DefaultRoutes())
}
