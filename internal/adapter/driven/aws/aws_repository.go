package aws

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2Types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgTypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

const (
	DefaultRegion = "us-east-1"

	metricNamespace = "AWS/AutoScaling"
	metricName      = "GroupInServiceInstances"
)

var defaultRegions = []string{"us-east-1", "us-east-2", "us-west-1", "us-west-2", "eu-west-1", "eu-central-1"}

// Options selects which accounts become scope units.
type Options struct {
	Profiles     []string
	All          bool
	Organization bool
	RoleName     string
}

// session is the credential handle stored on an authorized scope unit.
type session struct {
	cfg     aws.Config
	profile string
}

// AWSRepositoryImpl implementa o ProviderRepository com cache de clientes.
type AWSRepositoryImpl struct {
	opts        Options
	homeDir     string
	cfgCache    map[string]aws.Config
	clientCache map[string]interface{}
	mu          sync.Mutex
}

// NewAWSRepository cria uma nova implementação do ProviderRepository para AWS.
func NewAWSRepository(opts Options) repository.ProviderRepository {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	if opts.RoleName == "" {
		opts.RoleName = types.DefaultRoleName
	}
	return &AWSRepositoryImpl{
		opts:        opts,
		homeDir:     home,
		cfgCache:    make(map[string]aws.Config),
		clientCache: make(map[string]interface{}),
	}
}

func (r *AWSRepositoryImpl) EnvironmentType() entity.EnvironmentType {
	return entity.EnvironmentAWS
}

func (r *AWSRepositoryImpl) PartitionCategories() []entity.Category {
	return []entity.Category{
		entity.CategoryCompute,
		entity.CategoryComputeStopped,
		entity.CategoryManagedDB,
		entity.CategoryManagedContainerCluster,
		entity.CategoryServerless,
	}
}

func (r *AWSRepositoryImpl) GlobalCategories() []entity.Category {
	return []entity.Category{entity.CategoryObjectStorage}
}

func (r *AWSRepositoryImpl) getAWSConfig(ctx context.Context, profile string) (aws.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.cfgCache[profile]; ok {
		return cfg, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(profile),
		config.WithDefaultRegion(DefaultRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config for profile %s: %w", profile, err)
	}

	r.cfgCache[profile] = cfg
	return cfg, nil
}

func sessionOf(scope entity.ScopeUnit) (*session, error) {
	s, ok := scope.Credential.(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: scope %s has no AWS session", entity.ErrScopeUnavailable, scope.ID)
	}
	return s, nil
}

func (r *AWSRepositoryImpl) getServiceClient(scope entity.ScopeUnit, region, service string) (interface{}, error) {
	s, err := sessionOf(scope)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("%s-%s-%s", scope.ID, region, service)

	r.mu.Lock()
	if client, ok := r.clientCache[cacheKey]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	regionalCfg := s.cfg.Copy()
	if region != "" {
		regionalCfg.Region = region
	}

	var client interface{}
	switch service {
	case "sts":
		client = sts.NewFromConfig(regionalCfg)
	case "ec2":
		client = ec2.NewFromConfig(regionalCfg)
	case "rds":
		client = rds.NewFromConfig(regionalCfg)
	case "lambda":
		client = lambda.NewFromConfig(regionalCfg)
	case "s3":
		client = s3.NewFromConfig(regionalCfg)
	case "eks":
		client = eks.NewFromConfig(regionalCfg)
	case "autoscaling":
		client = autoscaling.NewFromConfig(regionalCfg)
	case "cloudwatch":
		client = cloudwatch.NewFromConfig(regionalCfg)
	default:
		return nil, fmt.Errorf("unsupported service: %s", service)
	}

	r.mu.Lock()
	r.clientCache[cacheKey] = client
	r.mu.Unlock()

	return client, nil
}

// GetAWSProfiles lê os perfis de ~/.aws/credentials e ~/.aws/config.
func (r *AWSRepositoryImpl) GetAWSProfiles() []string {
	return readProfiles(
		filepath.Join(r.homeDir, ".aws", "credentials"),
		filepath.Join(r.homeDir, ".aws", "config"),
	)
}

func readProfiles(credentialsPath, configPath string) []string {
	profiles := make(map[string]bool)

	parseFile := func(path string, isConfig bool) {
		f, err := ini.Load(path)
		if err != nil {
			return
		}
		for _, section := range f.Sections() {
			name := section.Name()
			if name == ini.DefaultSection {
				continue
			}
			if isConfig {
				if strings.HasPrefix(name, "sso-session ") || strings.HasPrefix(name, "services ") {
					continue
				}
				name = strings.TrimPrefix(name, "profile ")
			}
			profiles[strings.TrimSpace(name)] = true
		}
	}

	parseFile(credentialsPath, false)
	parseFile(configPath, true)

	if len(profiles) == 0 {
		profiles["default"] = true
	}

	result := make([]string, 0, len(profiles))
	for profile := range profiles {
		result = append(result, profile)
	}
	sort.Strings(result)
	return result
}

// ListScopeUnits returns either the organization's member accounts or the
// selected CLI profiles.
func (r *AWSRepositoryImpl) ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error) {
	profiles, err := r.selectProfiles()
	if err != nil {
		return nil, err
	}

	if r.opts.Organization {
		return r.listOrganizationAccounts(ctx, profiles[0])
	}

	scopes := make([]entity.ScopeUnit, 0, len(profiles))
	for _, p := range profiles {
		scopes = append(scopes, entity.ScopeUnit{ID: p, DisplayName: p})
	}
	return scopes, nil
}

func (r *AWSRepositoryImpl) selectProfiles() ([]string, error) {
	available := r.GetAWSProfiles()
	if len(available) == 0 {
		return nil, types.ErrNoProfilesFound
	}

	if len(r.opts.Profiles) > 0 {
		var selected []string
		for _, p := range r.opts.Profiles {
			for _, a := range available {
				if p == a {
					selected = append(selected, p)
					break
				}
			}
		}
		if len(selected) == 0 {
			return nil, types.ErrNoValidProfilesFound
		}
		return selected, nil
	}

	if r.opts.All {
		return available, nil
	}
	for _, p := range available {
		if p == "default" {
			return []string{"default"}, nil
		}
	}
	return available, nil
}

func (r *AWSRepositoryImpl) listOrganizationAccounts(ctx context.Context, profile string) ([]entity.ScopeUnit, error) {
	cfg, err := r.getAWSConfig(ctx, profile)
	if err != nil {
		return nil, err
	}
	client := organizations.NewFromConfig(cfg)

	var scopes []entity.ScopeUnit
	paginator := organizations.NewListAccountsPaginator(client, &organizations.ListAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list organization accounts")
		}
		for _, acct := range page.Accounts {
			if acct.Status != orgTypes.AccountStatusActive {
				continue
			}
			scopes = append(scopes, entity.ScopeUnit{
				ID:          aws.ToString(acct.Id),
				DisplayName: aws.ToString(acct.Name),
				Credential:  profile,
			})
		}
	}
	return scopes, nil
}

// Authorize carrega a configuração do perfil (ou assume a role na conta
// membro) e valida as credenciais com GetCallerIdentity.
func (r *AWSRepositoryImpl) Authorize(ctx context.Context, scope entity.ScopeUnit) (entity.ScopeUnit, error) {
	var (
		cfg     aws.Config
		profile string
		err     error
	)

	if r.opts.Organization {
		profile, _ = scope.Credential.(string)
		if profile == "" {
			profile = "default"
		}
		cfg, err = r.getAWSConfig(ctx, profile)
		if err != nil {
			return scope, fmt.Errorf("%w: %v", entity.ErrScopeUnavailable, err)
		}
		cfg = cfg.Copy()
		roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", scope.ID, r.opts.RoleName)
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "plan-estimator"
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	} else {
		profile = scope.ID
		cfg, err = r.getAWSConfig(ctx, profile)
		if err != nil {
			return scope, fmt.Errorf("%w: %v", entity.ErrScopeUnavailable, err)
		}
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return scope, scopeUnavailable(err, "credentials for "+scope.Label())
	}

	display := scope.DisplayName
	if display == "" {
		display = profile
	}
	return entity.ScopeUnit{
		ID:          aws.ToString(identity.Account),
		DisplayName: display,
		Credential:  &session{cfg: cfg, profile: profile},
	}, nil
}

// ListPartitions devolve as regiões habilitadas da conta.
func (r *AWSRepositoryImpl) ListPartitions(ctx context.Context, scope entity.ScopeUnit) ([]string, error) {
	client, err := r.getServiceClient(scope, DefaultRegion, "ec2")
	if err != nil {
		return nil, err
	}
	ec2Client := client.(*ec2.Client)

	out, err := ec2Client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		return fallbackRegions(ctx, scope, classify(err, "describe regions"))
	}

	regions := make([]string, 0, len(out.Regions))
	for _, region := range out.Regions {
		regions = append(regions, aws.ToString(region.RegionName))
	}
	sort.Strings(regions)
	return regions, nil
}

// fallbackRegions serves defaultRegions when the region listing is denied.
// Regions outside that list are not inventoried, so the fallback is logged.
func fallbackRegions(ctx context.Context, scope entity.ScopeUnit, err error) ([]string, error) {
	if !isPermission(err) {
		return nil, err
	}
	zerolog.Ctx(ctx).Warn().
		Err(err).
		Str("scope", scope.ID).
		Strs("regions", defaultRegions).
		Msg("DescribeRegions denied, inventory limited to the default regions")
	return defaultRegions, nil
}

func (r *AWSRepositoryImpl) RegionalPartitions() bool {
	return true
}

func (r *AWSRepositoryImpl) CountResources(ctx context.Context, scope entity.ScopeUnit, partition string, category entity.Category) (int, error) {
	switch category {
	case entity.CategoryCompute:
		return r.countInstances(ctx, scope, partition, "pending", "running", "stopping", "stopped")
	case entity.CategoryComputeStopped:
		return r.countInstances(ctx, scope, partition, "stopped")
	case entity.CategoryManagedDB:
		return r.countDBInstances(ctx, scope, partition)
	case entity.CategoryServerless:
		return r.countFunctions(ctx, scope, partition)
	case entity.CategoryManagedContainerCluster:
		clusters, err := r.ListClusters(ctx, scope, partition)
		return len(clusters), err
	case entity.CategoryObjectStorage:
		return r.countBuckets(ctx, scope)
	}
	return 0, fmt.Errorf("%w: category %s on AWS", entity.ErrNotSupported, category)
}

func (r *AWSRepositoryImpl) countInstances(ctx context.Context, scope entity.ScopeUnit, region string, states ...string) (int, error) {
	client, err := r.getServiceClient(scope, region, "ec2")
	if err != nil {
		return 0, err
	}
	ec2Client := client.(*ec2.Client)

	count := 0
	paginator := ec2.NewDescribeInstancesPaginator(ec2Client, &ec2.DescribeInstancesInput{
		Filters: []ec2Types.Filter{
			{Name: aws.String("instance-state-name"), Values: states},
		},
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classify(err, "describe instances in "+region)
		}
		for _, reservation := range output.Reservations {
			count += len(reservation.Instances)
		}
	}
	return count, nil
}

func (r *AWSRepositoryImpl) countDBInstances(ctx context.Context, scope entity.ScopeUnit, region string) (int, error) {
	client, err := r.getServiceClient(scope, region, "rds")
	if err != nil {
		return 0, err
	}

	count := 0
	paginator := rds.NewDescribeDBInstancesPaginator(client.(*rds.Client), &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classify(err, "describe db instances in "+region)
		}
		count += len(output.DBInstances)
	}
	return count, nil
}

func (r *AWSRepositoryImpl) countFunctions(ctx context.Context, scope entity.ScopeUnit, region string) (int, error) {
	client, err := r.getServiceClient(scope, region, "lambda")
	if err != nil {
		return 0, err
	}

	count := 0
	paginator := lambda.NewListFunctionsPaginator(client.(*lambda.Client), &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classify(err, "list functions in "+region)
		}
		count += len(output.Functions)
	}
	return count, nil
}

func (r *AWSRepositoryImpl) countBuckets(ctx context.Context, scope entity.ScopeUnit) (int, error) {
	client, err := r.getServiceClient(scope, DefaultRegion, "s3")
	if err != nil {
		return 0, err
	}

	count := 0
	paginator := s3.NewListBucketsPaginator(client.(*s3.Client), &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classify(err, "list buckets")
		}
		count += len(output.Buckets)
	}
	return count, nil
}

func (r *AWSRepositoryImpl) ListClusters(ctx context.Context, scope entity.ScopeUnit, partition string) ([]string, error) {
	client, err := r.getServiceClient(scope, partition, "eks")
	if err != nil {
		return nil, err
	}

	var clusters []string
	paginator := eks.NewListClustersPaginator(client.(*eks.Client), &eks.ListClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list EKS clusters in "+partition)
		}
		clusters = append(clusters, output.Clusters...)
	}
	return clusters, nil
}

func (r *AWSRepositoryImpl) ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error) {
	client, err := r.getServiceClient(scope, partition, "eks")
	if err != nil {
		return nil, err
	}
	eksClient := client.(*eks.Client)

	var names []string
	paginator := eks.NewListNodegroupsPaginator(eksClient, &eks.ListNodegroupsInput{ClusterName: aws.String(clusterID)})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list node groups of "+clusterID)
		}
		names = append(names, output.Nodegroups...)
	}

	groups := make([]entity.NodeGroup, 0, len(names))
	for _, name := range names {
		out, err := eksClient.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(clusterID),
			NodegroupName: aws.String(name),
		})
		if err != nil {
			return nil, classify(err, "describe node group "+name)
		}

		ng := entity.NodeGroup{Name: name, ClusterID: clusterID}
		if out.Nodegroup != nil && out.Nodegroup.Resources != nil {
			for _, asg := range out.Nodegroup.Resources.AutoScalingGroups {
				if asg.Name != nil {
					ng.ScalingGroupIDs = append(ng.ScalingGroupIDs, *asg.Name)
				}
			}
		}
		groups = append(groups, ng)
	}
	return groups, nil
}

func (r *AWSRepositoryImpl) DescribeScalingGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) (entity.ScalingGroup, error) {
	client, err := r.getServiceClient(scope, partition, "autoscaling")
	if err != nil {
		return entity.ScalingGroup{}, err
	}

	out, err := client.(*autoscaling.Client).DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{groupID},
	})
	if err != nil {
		return entity.ScalingGroup{}, classify(err, "describe auto scaling group "+groupID)
	}

	group := entity.ScalingGroup{ID: groupID}
	if len(out.AutoScalingGroups) == 0 {
		return group, nil
	}
	for _, inst := range out.AutoScalingGroups[0].Instances {
		group.InstanceTypes = append(group.InstanceTypes, aws.ToString(inst.InstanceType))
	}
	group.CurrentInstanceCount = len(group.InstanceTypes)
	return group, nil
}

func (r *AWSRepositoryImpl) ResolveCoresForInstanceType(ctx context.Context, scope entity.ScopeUnit, partition, instanceType string) (int, error) {
	client, err := r.getServiceClient(scope, partition, "ec2")
	if err != nil {
		return 0, err
	}

	out, err := client.(*ec2.Client).DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: []ec2Types.InstanceType{ec2Types.InstanceType(instanceType)},
	})
	if err != nil {
		return 0, classify(err, "describe instance type "+instanceType)
	}
	if len(out.InstanceTypes) == 0 || out.InstanceTypes[0].VCpuInfo == nil {
		return 0, fmt.Errorf("%w: instance type %s not found", entity.ErrNotSupported, instanceType)
	}
	return int(aws.ToInt32(out.InstanceTypes[0].VCpuInfo.DefaultVCpus)), nil
}

// QueryTimeSeries lê GroupInServiceInstances (média diária) do CloudWatch.
// Requer métricas de grupo habilitadas no ASG; sem elas não há pontos.
func (r *AWSRepositoryImpl) QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error) {
	client, err := r.getServiceClient(scope, partition, "cloudwatch")
	if err != nil {
		return nil, err
	}

	period := int32(query.Period / time.Second)
	if period <= 0 {
		period = 86400
	}
	out, err := client.(*cloudwatch.Client).GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(metricNamespace),
		MetricName: aws.String(metricName),
		Dimensions: []cwTypes.Dimension{
			{Name: aws.String("AutoScalingGroupName"), Value: aws.String(query.GroupID)},
		},
		StartTime:  aws.Time(query.Start),
		EndTime:    aws.Time(query.End),
		Period:     aws.Int32(period),
		Statistics: []cwTypes.Statistic{cwTypes.StatisticAverage},
	})
	if err != nil {
		return nil, classify(err, "get metric statistics for "+query.GroupID)
	}

	samples := make([]entity.MetricSample, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		if dp.Average == nil {
			continue
		}
		samples = append(samples, entity.MetricSample{
			Timestamp: aws.ToTime(dp.Timestamp),
			Value:     *dp.Average,
		})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	return samples, nil
}
