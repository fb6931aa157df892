package ci

// Vendors is the list of recognized CI providers, checked in order.
var Vendors = []Vendor{
	{Name: "GitHub Actions", Constant: "GITHUB_ACTIONS", EnvAny: []string{"GITHUB_ACTIONS"}},
	{Name: "GitLab CI", Constant: "GITLAB", EnvAny: []string{"GITLAB_CI"}},
	{Name: "CircleCI", Constant: "CIRCLE", EnvAny: []string{"CIRCLECI"}},
	{Name: "Travis CI", Constant: "TRAVIS", EnvAny: []string{"TRAVIS"}},
	{Name: "Jenkins", Constant: "JENKINS", EnvAll: []string{"JENKINS_URL", "BUILD_ID"}},
	{Name: "TeamCity", Constant: "TEAMCITY", EnvAny: []string{"TEAMCITY_VERSION"}},
	{Name: "Buildkite", Constant: "BUILDKITE", EnvAny: []string{"BUILDKITE"}},
	{Name: "Azure Pipelines", Constant: "AZURE_PIPELINES", EnvAny: []string{"SYSTEM_TEAMFOUNDATIONCOLLECTIONURI"}},
	{Name: "AppVeyor", Constant: "APPVEYOR", EnvAny: []string{"APPVEYOR"}},
	{Name: "Bitbucket Pipelines", Constant: "BITBUCKET", EnvAny: []string{"BITBUCKET_COMMIT"}},
	{Name: "Drone", Constant: "DRONE", EnvAny: []string{"DRONE"}},
	{Name: "Codefresh", Constant: "CODEFRESH", EnvAny: []string{"CF_BUILD_ID"}},
	{Name: "Vercel", Constant: "VERCEL", EnvAny: []string{"NOW_BUILDER", "VERCEL"}},
	{Name: "Netlify CI", Constant: "NETLIFY", EnvAny: []string{"NETLIFY"}},
	{Name: "Render", Constant: "RENDER", EnvAny: []string{"RENDER"}},
	{Name: "AWS CodeBuild", Constant: "CODEBUILD", EnvAny: []string{"CODEBUILD_BUILD_ARN"}},
	{Name: "Woodpecker", Constant: "WOODPECKER", EvalEnv: map[string]string{"CI": "woodpecker"}},
}
